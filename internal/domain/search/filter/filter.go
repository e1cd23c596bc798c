// Package filter implements the structured narrowing applied after vector search.
package filter

import (
	"fmt"

	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
)

// Filters are the optional structured constraints of one search.
// Price bounds are inclusive. CategoryIDs is a descendant closure; nil means unset,
// a non-nil empty slice admits nothing.
type Filters struct {
	PriceMin    *float64
	PriceMax    *float64
	CategoryID  *int64
	CategoryIDs []int64
	BrandID     *int64
	InStockOnly bool
}

// Validate rejects negative price bounds.
func (f Filters) Validate() error {
	if f.PriceMin != nil && *f.PriceMin < 0 {
		return fmt.Errorf("price_min must be non-negative, got %g", *f.PriceMin)
	}
	if f.PriceMax != nil && *f.PriceMax < 0 {
		return fmt.Errorf("price_max must be non-negative, got %g", *f.PriceMax)
	}
	return nil
}

// HasCategoryClosure reports whether a non-empty descendant set is active.
func (f Filters) HasCategoryClosure() bool { return len(f.CategoryIDs) > 0 }

// IsActive reports whether any constraint would narrow the candidate set.
// Zero-valued bounds and ids count as unset.
func (f Filters) IsActive() bool {
	return (f.PriceMin != nil && *f.PriceMin != 0) ||
		(f.PriceMax != nil && *f.PriceMax != 0) ||
		(f.CategoryID != nil && *f.CategoryID != 0) ||
		len(f.CategoryIDs) > 0 ||
		(f.BrandID != nil && *f.BrandID != 0) ||
		f.InStockOnly
}

// WithoutCategory drops both category constraints, keeping price, brand and stock.
func (f Filters) WithoutCategory() Filters {
	f.CategoryID = nil
	f.CategoryIDs = nil
	return f
}

// Apply keeps the candidates whose metadata satisfies every active predicate.
// Output order matches input order. Positions outside meta are dropped silently.
func (f Filters) Apply(meta []product.Meta, positions []int, scores []float64) ([]int, []float64) {
	members := f.memberSet()
	outPos := make([]int, 0, len(positions))
	outScores := make([]float64, 0, len(positions))
	for i, pos := range positions {
		if pos < 0 || pos >= len(meta) || i >= len(scores) {
			continue
		}
		if !f.admits(&meta[pos], members) {
			continue
		}
		outPos = append(outPos, pos)
		outScores = append(outScores, scores[i])
	}
	return outPos, outScores
}

// Match reports whether a single record passes the filters.
func (f Filters) Match(m *product.Meta) bool {
	return f.admits(m, f.memberSet())
}

func (f Filters) memberSet() map[int64]struct{} {
	if f.CategoryIDs == nil {
		return nil
	}
	members := make(map[int64]struct{}, len(f.CategoryIDs))
	for _, id := range f.CategoryIDs {
		members[id] = struct{}{}
	}
	return members
}

func (f Filters) admits(m *product.Meta, members map[int64]struct{}) bool {
	if f.PriceMin != nil && m.Price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && m.Price > *f.PriceMax {
		return false
	}
	if f.CategoryID != nil && !m.HasCategory(*f.CategoryID) {
		return false
	}
	if members != nil {
		if m.CategoryID == nil {
			return false
		}
		if _, ok := members[*m.CategoryID]; !ok {
			return false
		}
	}
	if f.BrandID != nil && !m.HasBrand(*f.BrandID) {
		return false
	}
	if f.InStockOnly && !m.InStock() {
		return false
	}
	return true
}
