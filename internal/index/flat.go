package index

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// minChunkRows keeps small matrices on the calling goroutine.
const minChunkRows = 2048

// Flat is a brute-force dot-product scan over an in-memory matrix.
type Flat struct {
	m    *Matrix
	pool *ants.Pool
}

// FlatOption configures a Flat index.
type FlatOption func(*Flat)

// WithWorkerPool scores row chunks concurrently on p. The pool is owned by the caller.
func WithWorkerPool(p *ants.Pool) FlatOption {
	return func(f *Flat) { f.pool = p }
}

// NewFlat wraps m. The matrix must not be modified afterwards.
func NewFlat(m *Matrix, opts ...FlatOption) *Flat {
	f := &Flat{m: m}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FlatBuilder returns a Builder producing Flat indexes with the given options.
func FlatBuilder(opts ...FlatOption) Builder {
	return func(_ context.Context, art *Artifacts) (Index, error) {
		return NewFlat(art.Vectors, opts...), nil
	}
}

// Len returns the number of vectors.
func (f *Flat) Len() int { return f.m.Rows }

// Dim returns the vector width.
func (f *Flat) Dim() int { return f.m.Dim }

// Search scores every row against query and returns the exact top k.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	n := f.m.Rows
	if n == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if len(query) != f.m.Dim {
		return nil, domain.NewDimensionMismatch("query width", len(query), f.m.Dim)
	}
	if k > n {
		k = n
	}

	scores := make([]float32, n)
	if err := f.score(ctx, query, scores); err != nil {
		return nil, err
	}

	hits := make([]Hit, n)
	for i, s := range scores {
		hits[i] = Hit{Position: i, Score: s}
	}
	SortHits(hits)
	return hits[:k], nil
}

func (f *Flat) score(ctx context.Context, query []float32, out []float32) error {
	n := f.m.Rows
	workers := 1
	if f.pool != nil {
		workers = f.pool.Cap()
	}
	if workers <= 1 || n < 2*minChunkRows {
		f.scoreRange(query, out, 0, n)
		return ctx.Err()
	}

	chunk := (n + workers - 1) / workers
	if chunk < minChunkRows {
		chunk = minChunkRows
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		lo, hi := start, end
		if err := f.pool.Submit(func() {
			defer wg.Done()
			f.scoreRange(query, out, lo, hi)
		}); err != nil {
			// pool closed or overloaded: score this chunk inline
			f.scoreRange(query, out, lo, hi)
			wg.Done()
		}
	}
	wg.Wait()
	return ctx.Err()
}

func (f *Flat) scoreRange(query []float32, out []float32, lo, hi int) {
	dim := f.m.Dim
	data := f.m.Data
	for i := lo; i < hi; i++ {
		row := data[i*dim : (i+1)*dim]
		var dot float32
		for j, q := range query {
			dot += q * row[j]
		}
		out[i] = dot
	}
}
