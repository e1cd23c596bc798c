package vectors

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/index"
)

// tieMargin is the extra KNN depth fetched beyond k to settle ties by position.
const tieMargin = 16

// Compile-time check: Index implements index.Index.
var _ index.Index = (*Index)(nil)

// Index runs exact KNN (FLAT, inner product) against the mirrored FT index.
type Index struct {
	repo *Repo
	rows int
	dim  int
}

// Len returns the number of mirrored vectors.
func (x *Index) Len() int { return x.rows }

// Dim returns the vector width.
func (x *Index) Dim() int { return x.dim }

// Search returns the exact top k by inner product, ties by ascending position.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	if x.rows == 0 || k <= 0 {
		return []index.Hit{}, nil
	}
	if len(query) != x.dim {
		return nil, domain.NewDimensionMismatch("query width", len(query), x.dim)
	}

	// KNN order among equal distances is engine-defined: over-fetch, re-sort,
	// and widen while the tie group may continue past the fetched window.
	fetch := min(k+tieMargin, x.rows)
	for {
		hits, err := x.knn(ctx, query, fetch)
		if err != nil {
			return nil, err
		}
		index.SortHits(hits)
		if len(hits) <= k {
			return hits, nil
		}
		if fetch >= x.rows || hits[k-1].Score != hits[len(hits)-1].Score {
			return hits[:k], nil
		}
		fetch = min(fetch*2, x.rows)
	}
}

func (x *Index) knn(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	sr, err := x.repo.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    x.repo.IndexName(),
		Vector:       query,
		K:            k,
		ReturnFields: []string{"pos", "__vector_score"},
		RawScores:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", x.repo.IndexName(), err)
	}

	hits := make([]index.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		pos, ok := x.position(e)
		if !ok {
			continue
		}
		// IP distance = 1 - dot
		hits = append(hits, index.Hit{Position: pos, Score: float32(1 - e.Score)})
	}
	return hits, nil
}

func (x *Index) position(e db.SearchEntry) (int, bool) {
	raw, ok := e.Fields["pos"]
	if !ok {
		raw = strings.TrimPrefix(e.Key, x.repo.docPrefix())
	}
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return pos, true
}
