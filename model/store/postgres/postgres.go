package postgres

import (
	"strings"
)

// Postgres Store implementation backed by the shared gorm connection from
// config. Segment CRUD goes through gorm; compiled dynamic statements run on
// the underlying database/sql handle with numbered placeholders.
type Postgres struct {
}

func IsDuplicateRecordError(err error) bool {
	return err != nil && strings.Contains(err.Error(),
		"duplicate key value violates unique constraint")
}
