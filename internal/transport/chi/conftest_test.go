package chi

import (
	"context"
	"sync"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/request"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/index"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/catalogsearch/internal/usecase/recommend"
)

// --- mock searcher ---

type mockSearcher struct {
	mu        sync.Mutex
	results   []result.Result
	err       error
	panicMsg  string
	lastReq   *request.Request
	rerankedN int
}

func (m *mockSearcher) Search(_ context.Context, req *request.Request) ([]result.Result, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.lastReq = &cp
	return m.results, m.err
}

func (m *mockSearcher) Rerank(_ string, results []result.Result, topK int) []result.Result {
	m.mu.Lock()
	m.rerankedN++
	m.mu.Unlock()
	out := make([]result.Result, len(results))
	copy(out, results)
	// reverse so the test can see that rerank ran
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// --- mock recommender ---

type mockRecommender struct {
	out    recommenduc.Output
	err    error
	lastIn recommenduc.Input
}

func (m *mockRecommender) Run(_ context.Context, in recommenduc.Input) (recommenduc.Output, error) {
	m.lastIn = in
	return m.out, m.err
}

// --- mock health ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- mock reloaders ---

type mockIndexReloader struct {
	snap  *index.Snapshot
	err   error
	calls int
}

func (m *mockIndexReloader) Reload(context.Context) (*index.Snapshot, error) {
	m.calls++
	return m.snap, m.err
}

type mockCategoryReloader struct {
	tree  *domcat.Tree
	err   error
	calls int
}

func (m *mockCategoryReloader) Reload(context.Context) (*domcat.Tree, error) {
	m.calls++
	return m.tree, m.err
}

func ptr[T any](v T) *T { return &v }

func sampleResults() []result.Result {
	return []result.Result{
		{Meta: product.Meta{ProductID: 1, Name: "Холодильник Atlant", Price: 150000, Slug: "atlant"}, Score: 0.9, URL: "https://shop/product/atlant"},
		{Meta: product.Meta{ProductID: 2, Name: "Морозильник Bosch", Price: 220000, Slug: "bosch"}, Score: 0.8, URL: "https://shop/product/bosch"},
	}
}

type fixture struct {
	search     *mockSearcher
	chat       *mockRecommender
	health     *mockHealth
	index      *mockIndexReloader
	categories *mockCategoryReloader
	server     *Server
}

func newFixture() *fixture {
	f := &fixture{
		search: &mockSearcher{results: sampleResults()},
		chat:   &mockRecommender{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"index": healthuc.CheckOK},
		}},
		index: &mockIndexReloader{snap: &index.Snapshot{
			Meta:        make([]product.Meta, 3),
			Fingerprint: "f00d",
		}},
		categories: &mockCategoryReloader{tree: domcat.NewTree([]domcat.Node{
			{ID: 1, Name: "Холодильное оборудование"},
			{ID: 2, Name: "Холодильники", ParentID: ptr[int64](1)},
		})},
	}
	f.server = NewServer(Deps{
		Search:     f.search,
		Chat:       f.chat,
		Health:     f.health,
		Index:      f.index,
		Categories: f.categories,
		Version:    "1.2.3",
	}, nil)
	return f
}
