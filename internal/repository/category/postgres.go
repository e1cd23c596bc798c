// Package category loads the category table from Postgres or a JSON dump.
package category

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/domain/category"
)

const categoriesSQL = `SELECT id, name, slug, parent_id FROM category ORDER BY parent_id NULLS FIRST, "order"`

// querier is the consumer interface over pgxpool.Pool (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSource reads the category table of the catalog database.
type PGSource struct {
	q querier
}

// NewPG creates a Postgres-backed category source.
func NewPG(q querier) *PGSource {
	return &PGSource{q: q}
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Load reads every category. NULL name and slug become empty strings.
func (s *PGSource) Load(ctx context.Context) ([]category.Node, error) {
	rows, err := s.q.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: query categories: %w", domain.ErrCategoriesUnavailable, err)
	}
	defer rows.Close()

	var nodes []category.Node
	for rows.Next() {
		var (
			id       int64
			name     *string
			slug     *string
			parentID *int64
		)
		if err := rows.Scan(&id, &name, &slug, &parentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		nodes = append(nodes, category.Node{
			ID:       id,
			Name:     deref(name),
			Slug:     deref(slug),
			ParentID: parentID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read categories: %w", domain.ErrCategoriesUnavailable, err)
	}
	return nodes, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
