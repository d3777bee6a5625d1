package database

import (
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// IsViolation проверяет, что postgres отклонил запрос с указанным кодом ошибки.
func IsViolation(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsForeignKeyViolation - запись ссылается на удаленную строку.
func IsForeignKeyViolation(err error) bool {
	return IsViolation(err, pgerrcode.ForeignKeyViolation)
}
