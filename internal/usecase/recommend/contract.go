package recommend

import (
	"context"

	"github.com/kailas-cloud/catalogsearch/internal/domain/search/request"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/category"
)

// Searcher is the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
	Rerank(query string, results []result.Result, topK int) []result.Result
}

// CategoryMatcher resolves a query to a category branch.
type CategoryMatcher interface {
	Match(ctx context.Context, query string) (category.Match, bool)
}

// Responder writes the reply text for a query and its formatted product list.
type Responder interface {
	Name() string
	Reply(ctx context.Context, instruction, query, productsContext string) (string, error)
}
