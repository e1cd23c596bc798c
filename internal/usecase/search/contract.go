package search

import (
	"context"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/index"
)

// SnapshotLoader returns the active index snapshot, loading it on first use.
type SnapshotLoader interface {
	EnsureLoaded(ctx context.Context) (*index.Snapshot, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
