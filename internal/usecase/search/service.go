package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/request"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/terms"
	"github.com/kailas-cloud/catalogsearch/internal/index"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Over-fetch widths applied before filtering.
const (
	closureFetchFactor = 50
	closureFetchFloor  = 1500
	filterFetchFactor  = 5
)

// Options configure result enrichment.
type Options struct {
	// FrontendBaseURL prefixes product page links, without a trailing slash.
	FrontendBaseURL string
	// BackendBaseURL prefixes relative image paths as is.
	BackendBaseURL string
}

// Service runs the retrieval pipeline: embed, over-fetch, reversed-order
// augmentation, filter, truncate, enrich.
type Service struct {
	snapshots SnapshotLoader
	embed     Embedder
	opts      Options
	logger    *zap.Logger
}

// New creates a search service.
func New(snapshots SnapshotLoader, embed Embedder, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{snapshots: snapshots, embed: embed, opts: opts, logger: logger}
}

// Search returns at most req.TopK() enriched results. A missing or empty
// snapshot yields an empty list, not an error. Embedding and backend failures
// are returned to the caller.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	snap, err := s.snapshots.EnsureLoaded(ctx)
	if err != nil {
		s.logger.Warn("Index not loaded, returning empty results", zap.Error(err))
		return []result.Result{}, nil
	}
	if snap.Len() == 0 || snap.Index.Len() == 0 {
		return []result.Result{}, nil
	}

	f := req.Filters()
	k := searchWidth(req.TopK(), snap.Index.Len(), f)

	variants := []string{req.Query()}
	if rev, ok := reversedQuery(req.Query()); ok {
		variants = append(variants, rev)
	}

	hits := make([][]index.Hit, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range variants {
		g.Go(func() error {
			h, err := s.retrieve(gctx, snap.Index, text, k)
			if err != nil {
				return err
			}
			hits[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var positions []int
	var scores []float64
	if len(hits) == 1 {
		positions, scores = index.Positions(hits[0])
	} else {
		positions, scores = mergeMax(hits[0], hits[1])
	}

	start := time.Now()
	if f.HasCategoryClosure() {
		f.CategoryID = nil
	}
	positions, scores = f.Apply(snap.Meta, positions, scores)
	metrics.SearchDuration.WithLabelValues("filter").Observe(time.Since(start).Seconds())

	if len(positions) > req.TopK() {
		positions = positions[:req.TopK()]
		scores = scores[:req.TopK()]
	}

	out := make([]result.Result, len(positions))
	for i, pos := range positions {
		out[i] = s.enrich(snap.Meta[pos], scores[i])
	}
	metrics.SearchResults.Observe(float64(len(out)))

	s.logger.Debug("search completed",
		zap.Int("top_k", req.TopK()),
		zap.Int("k_search", k),
		zap.Int("variants", len(variants)),
		zap.Int("results", len(out)),
	)
	return out, nil
}

func (s *Service) retrieve(ctx context.Context, idx index.Index, text string, k int) ([]index.Hit, error) {
	start := time.Now()
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	metrics.SearchDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	start = time.Now()
	hits, err := idx.Search(ctx, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	metrics.SearchDuration.WithLabelValues("knn").Observe(time.Since(start).Seconds())
	return hits, nil
}

// enrich copies the record and attaches the rounded score and public links.
func (s *Service) enrich(m product.Meta, score float64) result.Result {
	r := result.Result{Meta: m, Score: math.Round(score*1e4) / 1e4}
	if m.Slug != "" {
		r.URL = s.opts.FrontendBaseURL + "/product/" + m.Slug
	}
	if m.ImageURL != "" && !strings.HasPrefix(m.ImageURL, "http") {
		r.ImageURL = s.opts.BackendBaseURL + m.ImageURL
	}
	return r
}

// searchWidth is the number of neighbours requested before filtering, never below topK.
func searchWidth(topK, ntotal int, f filter.Filters) int {
	k := topK
	switch {
	case f.HasCategoryClosure():
		k = min(max(topK*closureFetchFactor, closureFetchFloor), ntotal)
	case f.IsActive():
		k = min(topK*filterFetchFactor, ntotal)
	}
	return max(k, topK)
}

// reversedQuery returns the significant terms in reverse order when there are at
// least two of them and the result differs from the normalized query.
func reversedQuery(query string) (string, bool) {
	ts := terms.Query(query)
	if len(ts) < 2 {
		return "", false
	}
	rev := terms.Reversed(ts)
	if rev == strings.ToLower(strings.TrimSpace(query)) {
		return "", false
	}
	return rev, true
}
