// Package recommend runs the chat flow: budget and category interpretation,
// search with category fallback, rerank, reply text, clarifying question.
package recommend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain/search/budget"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/request"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Input is one chat turn. Nil fields are unset.
type Input struct {
	Query       string
	PriceMin    *float64
	PriceMax    *float64
	CategoryID  *int64
	BrandID     *int64
	InStockOnly bool
}

// Product is the public view of a recommended item.
type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	URL      string  `json:"url"`
	ImageURL string  `json:"image_url"`
	Score    float64 `json:"score"`
}

// Output is the chat answer.
type Output struct {
	Message            string    `json:"message"`
	Products           []Product `json:"products"`
	ClarifyingQuestion *string   `json:"clarifying_question"`
}

// Options size the retrieval.
type Options struct {
	RetrievalTopK int
	MaxProducts   int
}

// Service orchestrates one recommendation.
type Service struct {
	search     Searcher
	categories CategoryMatcher
	responder  Responder
	opts       Options
	logger     *zap.Logger
}

// New creates the chat service. A nil responder selects the local template.
func New(search Searcher, categories CategoryMatcher, responder Responder, opts Options, logger *zap.Logger) *Service {
	if responder == nil {
		responder = LocalResponder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{search: search, categories: categories, responder: responder, opts: opts, logger: logger}
}

// Run answers one query. Only request validation, embedding and backend
// errors are returned; a responder failure falls back to the template.
func (s *Service) Run(ctx context.Context, in Input) (Output, error) {
	parsed := budget.Parse(in.Query)
	f := filter.Filters{
		PriceMin:    firstSet(in.PriceMin, parsed.Min),
		PriceMax:    firstSet(in.PriceMax, parsed.Max),
		CategoryID:  in.CategoryID,
		BrandID:     in.BrandID,
		InStockOnly: in.InStockOnly,
	}
	if f.PriceMax != nil {
		s.logger.Info("Budget from query", zap.Float64("price_max", *f.PriceMax))
	}
	if f.PriceMin != nil {
		s.logger.Info("Budget from query", zap.Float64("price_min", *f.PriceMin))
	}

	var (
		matchedName string
		childNames  []string
		allChildren []string
	)
	if in.CategoryID == nil && s.categories != nil {
		if m, ok := s.categories.Match(ctx, in.Query); ok {
			f.CategoryIDs = m.DescendantIDs
			matchedName = m.Name
			for _, c := range m.Children {
				allChildren = append(allChildren, c.Name)
				if c.Name != "" {
					childNames = append(childNames, c.Name)
				}
			}
		}
	}

	req, err := request.New(in.Query, s.opts.RetrievalTopK, f)
	if err != nil {
		return Output{}, err
	}

	results, err := s.search.Search(ctx, &req)
	if err != nil {
		return Output{}, fmt.Errorf("search: %w", err)
	}

	fallback := false
	if len(results) == 0 && req.Filters().HasCategoryClosure() {
		s.logger.Info("No results with category filter, retrying without category")
		metrics.SearchFallbackTotal.Inc()
		fallback = true
		retry := req.WithoutCategory()
		results, err = s.search.Search(ctx, &retry)
		if err != nil {
			return Output{}, fmt.Errorf("search without category: %w", err)
		}
	}

	results = s.search.Rerank(in.Query, results, s.opts.MaxProducts)
	products := toProducts(results)

	message := s.reply(ctx, in.Query, FormatProductsContext(products))
	if fallback && len(products) > 0 {
		message += fallbackNote
	}

	return Output{
		Message:            message,
		Products:           products,
		ClarifyingQuestion: clarify(in.Query, products, matchedName, childNames, allChildren),
	}, nil
}

func (s *Service) reply(ctx context.Context, query, productsContext string) string {
	name := s.responder.Name()
	msg, err := s.responder.Reply(ctx, SystemInstruction, query, productsContext)
	if err == nil {
		metrics.ReplyTotal.WithLabelValues(name, "success").Inc()
		return msg
	}
	s.logger.Warn("responder failed, using template reply",
		zap.String("responder", name),
		zap.Error(err),
	)
	metrics.ReplyTotal.WithLabelValues(name, "error").Inc()
	return templateReply(productsContext)
}

func clarify(query string, products []Product, matchedName string, childNames, allChildren []string) *string {
	var q string
	switch {
	case len(products) == 0:
		q = noResultsQuestion
	case len(products) < fewResultsBelow:
		q = fewResultsQuestion
	case matchedName != "" && len(allChildren) >= minChildrenToClarify && !mentionsAny(query, allChildren):
		q = subcategoryQuestion(matchedName, childNames)
	}
	if q == "" {
		return nil
	}
	return &q
}

func toProducts(results []result.Result) []Product {
	out := make([]Product, len(results))
	for i, r := range results {
		out[i] = Product{
			ID:       r.ProductID,
			Name:     r.Name,
			Price:    r.Price,
			URL:      r.URL,
			ImageURL: r.ImageURL,
			Score:    r.Score,
		}
	}
	return out
}

func firstSet(explicit, parsed *float64) *float64 {
	if explicit != nil {
		return explicit
	}
	return parsed
}
