package database_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/assert"
)

func TestIsForeignKeyViolation(t *testing.T) {
	fk := fmt.Errorf("SQL request: %w", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}

	assert.True(t, database.IsForeignKeyViolation(fk))
	assert.False(t, database.IsForeignKeyViolation(unique))
	assert.False(t, database.IsForeignKeyViolation(errors.New("connection refused")))
	assert.True(t, database.IsViolation(unique, pgerrcode.UniqueViolation))
}
