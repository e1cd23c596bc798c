package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
	"github.com/kailas-cloud/catalogsearch/internal/index"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

type fakeLoader struct {
	snap *index.Snapshot
	err  error
}

func (l *fakeLoader) EnsureLoaded(_ context.Context) (*index.Snapshot, error) {
	return l.snap, l.err
}

// fakeEmbedder maps exact texts to vectors; unknown texts get fallback.
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: e.fallback}, nil
}

func (e *fakeEmbedder) called() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

var errEmbed = errors.New("embedder down")

func snapshot(t *testing.T, vectors [][]float32, meta []product.Meta) *index.Snapshot {
	t.Helper()
	flat, err := index.Build(vectors, meta)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return &index.Snapshot{Meta: meta, Index: flat, Fingerprint: "test"}
}

// three items: A(100, cat 1, stock 1), B(200, cat 1, stock 0), C(300, cat 2, stock 2)
func threeItems(t *testing.T) *index.Snapshot {
	t.Helper()
	meta := []product.Meta{
		{ProductID: 1, Name: "A", Price: 100, CategoryID: i64(1), Quantity: 1, Slug: "a"},
		{ProductID: 2, Name: "B", Price: 200, CategoryID: i64(1), Quantity: 0, Slug: "b"},
		{ProductID: 3, Name: "C", Price: 300, CategoryID: i64(2), Quantity: 2},
	}
	vectors := [][]float32{{1, 0}, {0.8, 0.6}, {0.6, 0.8}}
	return snapshot(t, vectors, meta)
}
