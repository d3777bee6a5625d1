package dbtest

import (
	"fmt"
	"reflect"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgproto3/v2"
)

// Rows is a canned pgx.Rows result. Values are assigned to scan targets
// as is, a nil value zeroes the target.
type Rows struct {
	columns []string
	values  [][]interface{}
	pos     int
	err     error
}

func NewRows(columns ...string) *Rows {
	return &Rows{columns: columns}
}

func (r *Rows) AddRow(values ...interface{}) *Rows {
	r.values = append(r.values, values)
	return r
}

// reset returns a fresh cursor over the same data.
func (r *Rows) reset() *Rows {
	return &Rows{columns: r.columns, values: r.values}
}

func (r *Rows) Close() {}

func (r *Rows) Err() error {
	return r.err
}

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag(fmt.Sprintf("SELECT %d", len(r.values)))
}

func (r *Rows) FieldDescriptions() []pgproto3.FieldDescription {
	fds := make([]pgproto3.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgproto3.FieldDescription{Name: []byte(c)}
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...interface{}) error {
	row := r.values[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("dbtest: %d scan targets for %d columns", len(dest), len(row))
	}

	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("dbtest: column %s: %w", r.columns[i], err)
		}
	}
	return nil
}

func (r *Rows) Values() ([]interface{}, error) {
	return r.values[r.pos-1], nil
}

func (r *Rows) RawValues() [][]byte {
	return nil
}

func assign(dst, src interface{}) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("target %T is not a pointer", dst)
	}
	target := dv.Elem()

	if src == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
	case target.Kind() == reflect.Ptr && sv.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(sv)
		target.Set(p)
	default:
		return fmt.Errorf("cannot assign %T to %s", src, target.Type())
	}
	return nil
}
