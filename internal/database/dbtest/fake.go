// Package dbtest provides a database.PGX double for services whose
// repositories are replaced with in-memory fakes.
package dbtest

import (
	"context"
	"errors"
	"sync"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var errNotSupported = errors.New("dbtest: queries are not supported, use repository fakes")

// DB records transaction outcomes. Query methods always fail.
type DB struct {
	mu         sync.Mutex
	Begun      int
	Committed  int
	RolledBack int
}

func New() *DB {
	return &DB{}
}

func (d *DB) GetPool(_ context.Context) *pgxpool.Pool {
	return nil
}

func (d *DB) BeginTx(_ context.Context, _ *pgx.TxOptions) (database.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Begun++
	return &tx{DB: d}, nil
}

func (d *DB) Exec(_ context.Context, _ database.Sqlizer) (pgconn.CommandTag, error) {
	return nil, errNotSupported
}

func (d *DB) Get(_ context.Context, _ interface{}, _ database.Sqlizer) error {
	return errNotSupported
}

func (d *DB) Select(_ context.Context, _ interface{}, _ database.Sqlizer) error {
	return errNotSupported
}

func (d *DB) ExecRaw(_ context.Context, _ string, _ ...interface{}) (pgconn.CommandTag, error) {
	return nil, errNotSupported
}

type tx struct {
	*DB
	done bool
}

func (t *tx) Commit(_ context.Context) error {
	t.DB.mu.Lock()
	defer t.DB.mu.Unlock()
	if !t.done {
		t.done = true
		t.DB.Committed++
	}
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	t.DB.mu.Lock()
	defer t.DB.mu.Unlock()
	if !t.done {
		t.done = true
		t.DB.RolledBack++
	}
	return nil
}
