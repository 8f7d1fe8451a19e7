package util

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func GetUUID() string {
	return uuid.New().String()
}

func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func MinInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// slowExecutionThreshold - Executions above this are logged with params for debugging.
const slowExecutionThreshold = 2 * time.Second

func LogOnSlowExecutionWithParams(startTime time.Time, logFields *log.Fields) {
	elapsed := time.Since(startTime)
	if elapsed > slowExecutionThreshold {
		log.WithFields(*logFields).WithField("elapsed", elapsed.String()).
			Warn("Slow execution.")
	}
}
