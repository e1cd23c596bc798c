// Package index provides exact inner-product nearest-neighbour search over the
// product vector snapshot, and the lifecycle of that snapshot.
package index

import (
	"context"
	"sort"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
)

// Index is an exact top-k searcher. Hits are ordered by descending score,
// ties by ascending position, and there are at most min(k, Len()) of them.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Dim() int
}

// Hit is one neighbour: its row position in the snapshot and its inner product with the query.
type Hit struct {
	Position int
	Score    float32
}

// Builder turns a loaded artifact pair into a searchable backend.
type Builder func(ctx context.Context, art *Artifacts) (Index, error)

// WithDimCheck wraps build so that artifacts whose width differs from dim are
// rejected before a backend is built. Cache keeps the previous snapshot on error.
func WithDimCheck(build Builder, dim int) Builder {
	return func(ctx context.Context, art *Artifacts) (Index, error) {
		if art.Vectors.Dim != dim {
			return nil, domain.NewDimensionMismatch("snapshot dim vs embedding.dimensions", art.Vectors.Dim, dim)
		}
		return build(ctx, art)
	}
}

// Build pairs vectors with metadata and returns an in-memory flat index.
// Counts must match and every row must have the same width.
func Build(vectors [][]float32, meta []product.Meta, opts ...FlatOption) (*Flat, error) {
	if len(vectors) != len(meta) {
		return nil, domain.NewDimensionMismatch("vectors vs meta", len(vectors), len(meta))
	}
	m, err := NewMatrix(vectors)
	if err != nil {
		return nil, err
	}
	return NewFlat(m, opts...), nil
}

// SortHits orders hits by descending score, then ascending position.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
}

// Positions splits hits into parallel position and score slices.
func Positions(hits []Hit) ([]int, []float64) {
	pos := make([]int, len(hits))
	scores := make([]float64, len(hits))
	for i, h := range hits {
		pos[i] = h.Position
		scores[i] = float64(h.Score)
	}
	return pos, scores
}
