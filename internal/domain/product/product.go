// Package product holds the per-position metadata record stored next to each index vector.
package product

// Meta is a denormalized catalog item as written to meta.json by the index build job.
// A null JSON price or quantity decodes as zero.
type Meta struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Slug         string  `json:"slug"`
	ImageURL     string  `json:"image_url"`
	CategoryID   *int64  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	BrandID      *int64  `json:"brand_id"`
	BrandName    string  `json:"brand_name"`
	Quantity     int     `json:"quantity"`
}

// InStock reports whether at least one unit is available.
func (m *Meta) InStock() bool { return m.Quantity > 0 }

// HasCategory reports whether the item belongs to category id.
func (m *Meta) HasCategory(id int64) bool {
	return m.CategoryID != nil && *m.CategoryID == id
}

// HasBrand reports whether the item belongs to brand id.
func (m *Meta) HasBrand(id int64) bool {
	return m.BrandID != nil && *m.BrandID == id
}
