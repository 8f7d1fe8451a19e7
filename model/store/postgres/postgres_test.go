package postgres

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"

	C "relate/config"
)

// setupTestStore Wires the shared services to a sqlmock-backed gorm
// connection so store methods run against scripted SQL expectations.
func setupTestStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.Nil(t, err)

	gormDB, err := gorm.Open("postgres", db)
	assert.Nil(t, err)

	C.SetServices(&C.Services{Db: gormDB})
	t.Cleanup(func() {
		gormDB.Close()
		C.SetServices(nil)
	})

	return &Postgres{}, mock
}

func TestIsDuplicateRecordError(t *testing.T) {
	assert.False(t, IsDuplicateRecordError(nil))
	assert.False(t, IsDuplicateRecordError(assert.AnError))
	assert.True(t, IsDuplicateRecordError(
		&testError{"pq: duplicate key value violates unique constraint \"segments_pkey\""}))
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
