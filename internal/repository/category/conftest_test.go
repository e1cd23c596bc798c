package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows is an in-memory pgx.Rows over (id, name, slug, parent_id) tuples.
type fakeRows struct {
	data   [][]any
	i      int
	err    error
	closed bool
}

var _ pgx.Rows = (*fakeRows)(nil)

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.i-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d columns", len(dest), len(row))
	}
	for j, d := range dest {
		switch p := d.(type) {
		case *int64:
			v, ok := row[j].(int64)
			if !ok {
				return errors.New("scan: want int64")
			}
			*p = v
		case **string:
			if row[j] == nil {
				*p = nil
				continue
			}
			v := row[j].(string)
			*p = &v
		case **int64:
			if row[j] == nil {
				*p = nil
				continue
			}
			v := row[j].(int64)
			*p = &v
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.query = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}
