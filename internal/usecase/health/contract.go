package health

import (
	"context"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
	"github.com/kailas-cloud/catalogsearch/internal/index"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexLoader exposes the index snapshot.
type IndexLoader interface {
	EnsureLoaded(ctx context.Context) (*index.Snapshot, error)
}

// CategoryLoader exposes the category tree.
type CategoryLoader interface {
	EnsureLoaded(ctx context.Context) (*domcat.Tree, error)
}
