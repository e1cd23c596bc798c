package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in runes.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 1000
)

// Request is a validated search invocation.
type Request struct {
	query   string
	topK    int
	filters filter.Filters
}

// New validates search parameters. topK == 0 selects DefaultTopK; larger values are clamped to MaxTopK.
func New(query string, topK int, filters filter.Filters) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if topK < 0 {
		return Request{}, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidRequest, topK)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if err := filters.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if len(filters.CategoryIDs) == 0 {
		filters.CategoryIDs = nil
	}

	return Request{query: query, topK: topK, filters: filters}, nil
}

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }

// Filters returns the structured constraints.
func (r *Request) Filters() filter.Filters { return r.filters }

// WithoutCategory returns a copy with category constraints removed.
func (r Request) WithoutCategory() Request {
	r.filters = r.filters.WithoutCategory()
	return r
}
