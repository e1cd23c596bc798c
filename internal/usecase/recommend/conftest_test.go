package recommend

import (
	"context"
	"errors"
	"fmt"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/request"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/category"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// fakeSearcher returns queued result lists in order and records every request.
type fakeSearcher struct {
	responses  [][]result.Result
	err        error
	requests   []request.Request
	rerankTopK int
}

func (s *fakeSearcher) Search(_ context.Context, req *request.Request) ([]result.Result, error) {
	s.requests = append(s.requests, *req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return []result.Result{}, nil
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out, nil
}

func (s *fakeSearcher) Rerank(_ string, results []result.Result, topK int) []result.Result {
	s.rerankTopK = topK
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}

type fakeMatcher struct {
	match category.Match
	ok    bool
	calls int
}

func (m *fakeMatcher) Match(_ context.Context, _ string) (category.Match, bool) {
	m.calls++
	return m.match, m.ok
}

type fakeResponder struct {
	reply string
	err   error
	got   []string
}

func (r *fakeResponder) Name() string { return "fake" }

func (r *fakeResponder) Reply(_ context.Context, instruction, query, productsContext string) (string, error) {
	r.got = []string{instruction, query, productsContext}
	return r.reply, r.err
}

var errUpstream = errors.New("upstream down")

func items(n int) []result.Result {
	out := make([]result.Result, n)
	for i := range out {
		out[i] = result.Result{
			Meta:  product.Meta{ProductID: int64(i + 1), Name: fmt.Sprintf("Товар %d", i+1), Price: float64(1000 * (i + 1))},
			Score: 0.9 - float64(i)/100,
			URL:   fmt.Sprintf("https://shop.test/product/p%d", i+1),
		}
	}
	return out
}

func refrigeration(children ...string) category.Match {
	refs := make([]domcat.Ref, len(children))
	ids := []int64{1}
	for i, c := range children {
		refs[i] = domcat.Ref{ID: int64(10 + i), Name: c}
		ids = append(ids, int64(10+i))
	}
	return category.Match{ID: 1, Name: "Холодильное оборудование", Children: refs, DescendantIDs: ids}
}
