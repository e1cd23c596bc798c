package category

import (
	"context"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
)

// Source reads the whole category table.
type Source interface {
	Load(ctx context.Context) ([]domcat.Node, error)
}
