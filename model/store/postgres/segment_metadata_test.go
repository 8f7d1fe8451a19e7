package postgres

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"

	C "relate/config"
)

// setupTestStoreWithCache Extends the sqlmock wiring with a miniredis-backed
// cache pool for the paths that read through the cache.
func setupTestStoreWithCache(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.Nil(t, err)

	gormDB, err := gorm.Open("postgres", db)
	assert.Nil(t, err)

	mr := miniredis.RunT(t)
	pool := &redis.Pool{
		MaxIdle: 2,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", mr.Addr())
		},
	}

	C.SetServices(&C.Services{Db: gormDB, CacheRedisPool: pool})
	t.Cleanup(func() {
		gormDB.Close()
		pool.Close()
		C.SetServices(nil)
	})

	return &Postgres{}, mock
}

func expectTagOptionsQuery(mock sqlmock.Sqlmock, projectID int64) {
	mock.ExpectQuery(`SELECT (.+) FROM "tags"`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("tag-1", "Hot").
			AddRow("tag-2", "Newsletter"))
}

func expectAgentOptionsQuery(mock sqlmock.Sqlmock, projectID int64) {
	mock.ExpectQuery(`SELECT (.+) FROM "agents" JOIN project_agent_mappings`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "email", "first_name", "last_name"}).
			AddRow("agent-1", "ada@acme.com", "Ada", "Lovelace").
			AddRow("agent-2", "ops@acme.com", "", ""))
}

func expectStageOptionsQuery(mock sqlmock.Sqlmock, projectID int64) {
	mock.ExpectQuery(`SELECT (.+) FROM "pipeline_stages"`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "position"}).
			AddRow("stage-1", "Qualified", 1).
			AddRow("stage-2", "Won", 2))
}

func TestDescribeSegmentFields(t *testing.T) {
	store, mock := setupTestStoreWithCache(t)
	projectID := int64(11)

	expectTagOptionsQuery(mock, projectID)
	expectAgentOptionsQuery(mock, projectID)
	expectStageOptionsQuery(mock, projectID)

	description, errCode := store.DescribeSegmentFields(projectID)
	assert.Equal(t, http.StatusOK, errCode)
	assert.NotEmpty(t, description.Fields)

	assert.Len(t, description.TagOptions, 2)
	assert.Equal(t, "Hot", description.TagOptions[0].Label)

	// Agent label falls back to email when the name is blank.
	assert.Len(t, description.UserOptions, 2)
	assert.Equal(t, "Ada Lovelace", description.UserOptions[0].Label)
	assert.Equal(t, "ops@acme.com", description.UserOptions[1].Label)

	assert.Len(t, description.PipelineStageOptions, 2)
	assert.Equal(t, "Qualified", description.PipelineStageOptions[0].Label)

	assert.Nil(t, mock.ExpectationsWereMet())
}

// The second call within the cache window must not reach the database.
func TestDescribeSegmentFieldsUsesCacheOnRepeat(t *testing.T) {
	store, mock := setupTestStoreWithCache(t)
	projectID := int64(12)

	expectTagOptionsQuery(mock, projectID)
	expectAgentOptionsQuery(mock, projectID)
	expectStageOptionsQuery(mock, projectID)

	first, errCode := store.DescribeSegmentFields(projectID)
	assert.Equal(t, http.StatusOK, errCode)
	assert.Nil(t, mock.ExpectationsWereMet())

	second, errCode := store.DescribeSegmentFields(projectID)
	assert.Equal(t, http.StatusOK, errCode)
	assert.Equal(t, first, second)
	assert.Nil(t, mock.ExpectationsWereMet())
}

// One failing option list degrades to empty without failing the call.
func TestDescribeSegmentFieldsPartialDegradation(t *testing.T) {
	store, mock := setupTestStoreWithCache(t)
	projectID := int64(13)

	expectTagOptionsQuery(mock, projectID)
	mock.ExpectQuery(`SELECT (.+) FROM "agents" JOIN project_agent_mappings`).
		WithArgs(projectID).
		WillReturnError(assert.AnError)
	expectStageOptionsQuery(mock, projectID)

	description, errCode := store.DescribeSegmentFields(projectID)
	assert.Equal(t, http.StatusOK, errCode)
	assert.Len(t, description.TagOptions, 2)
	assert.Empty(t, description.UserOptions)
	assert.Len(t, description.PipelineStageOptions, 2)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestDescribeSegmentFieldsInvalidProject(t *testing.T) {
	store, _ := setupTestStoreWithCache(t)

	description, errCode := store.DescribeSegmentFields(0)
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.Nil(t, description)
}
