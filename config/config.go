package config

import (
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const DEVELOPMENT = "development"

type DBConf struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"relate"`
	Name     string `envconfig:"DB_NAME" default:"relate"`
	Password string `envconfig:"DB_PASSWORD"`
}

type RedisConf struct {
	Host string `envconfig:"REDIS_HOST" default:"localhost"`
	Port int    `envconfig:"REDIS_PORT" default:"6379"`
}

type Configuration struct {
	Env     string `envconfig:"ENV" default:"development"`
	AppName string `envconfig:"APP_NAME" default:"relate"`
	DBInfo  DBConf
	Redis   RedisConf
}

type Services struct {
	Db             *gorm.DB
	CacheRedisPool *redis.Pool
}

var configuration *Configuration
var services *Services

func initLogging() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if IsDevelopment() {
		log.SetLevel(log.DebugLevel)
	}
}

// InitConf Loads configuration from environment. Idempotent.
func InitConf() error {
	if configuration != nil {
		return nil
	}

	var conf Configuration
	if err := envconfig.Process("relate", &conf); err != nil {
		return err
	}

	configuration = &conf
	initLogging()
	return nil
}

// InitServices Initializes shared service connections (db, redis) from config.
func InitServices() error {
	if err := InitConf(); err != nil {
		return err
	}

	if services != nil {
		return nil
	}

	dbInfo := configuration.DBInfo
	db, err := gorm.Open("postgres", fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
		dbInfo.Host, dbInfo.Port, dbInfo.User, dbInfo.Name, dbInfo.Password))
	if err != nil {
		log.WithError(err).Error("Failed to connect to database.")
		return err
	}

	if IsDevelopment() {
		db.LogMode(true)
	}

	redisPool := newRedisPool(configuration.Redis.Host, configuration.Redis.Port)

	services = &Services{Db: db, CacheRedisPool: redisPool}
	return nil
}

func newRedisPool(host string, port int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     20,
		MaxActive:   100,
		IdleTimeout: 2 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
		},
	}
}

func GetConfig() *Configuration {
	if configuration == nil {
		log.Fatal("Configuration not initialized.")
	}
	return configuration
}

func GetServices() *Services {
	if services == nil {
		log.Fatal("Services not initialized. Use InitServices before GetServices.")
	}
	return services
}

// SetServices Overrides shared services. Used by tests to inject mock connections.
func SetServices(s *Services) {
	services = s
}

// GetCacheRedisConnection Returns a connection from the cache redis pool.
// Caller owns closing the connection.
func GetCacheRedisConnection() redis.Conn {
	return GetServices().CacheRedisPool.Get()
}

func IsDevelopment() bool {
	return configuration == nil || configuration.Env == DEVELOPMENT
}
