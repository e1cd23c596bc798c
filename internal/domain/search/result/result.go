package result

import "github.com/kailas-cloud/catalogsearch/internal/domain/product"

// Result is one enriched search hit: the stored metadata plus the rounded
// similarity score and the public product URL. ImageURL is absolute.
type Result struct {
	product.Meta
	Score float64 `json:"score"`
	URL   string  `json:"url"`
}
