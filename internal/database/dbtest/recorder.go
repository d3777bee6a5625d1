package dbtest

import (
	"context"
	"sync"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgconn"
)

// Query is one rendered statement.
type Query struct {
	SQL  string
	Args []interface{}
}

// Recorder is a database.Queryable that renders and keeps every statement.
// Err is returned from every call, Tag from Exec. When Rows is set, Get and
// Select scan it into dst through pgxscan.
type Recorder struct {
	mu      sync.Mutex
	Queries []Query
	Err     error
	Tag     pgconn.CommandTag
	Rows    *Rows
}

func (r *Recorder) record(s database.Sqlizer) error {
	sql, args, err := s.ToSql()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries = append(r.Queries, Query{SQL: sql, Args: args})
	return r.Err
}

// Last returns the latest statement.
func (r *Recorder) Last() Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Queries) == 0 {
		return Query{}
	}
	return r.Queries[len(r.Queries)-1]
}

func (r *Recorder) Exec(_ context.Context, s database.Sqlizer) (pgconn.CommandTag, error) {
	if err := r.record(s); err != nil {
		return nil, err
	}
	return r.Tag, nil
}

func (r *Recorder) Get(_ context.Context, dst interface{}, s database.Sqlizer) error {
	if err := r.record(s); err != nil {
		return err
	}
	if r.Rows == nil {
		return nil
	}
	return pgxscan.ScanOne(dst, r.Rows.reset())
}

func (r *Recorder) Select(_ context.Context, dst interface{}, s database.Sqlizer) error {
	if err := r.record(s); err != nil {
		return err
	}
	if r.Rows == nil {
		return nil
	}
	return pgxscan.ScanAll(dst, r.Rows.reset())
}

func (r *Recorder) ExecRaw(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries = append(r.Queries, Query{SQL: sql, Args: args})
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Tag, nil
}
