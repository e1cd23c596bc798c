package index

import "github.com/kailas-cloud/catalogsearch/internal/domain"

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// NewMatrix copies rows into a contiguous matrix. All rows must share one width.
func NewMatrix(rows [][]float32) (*Matrix, error) {
	m := &Matrix{Rows: len(rows)}
	if len(rows) == 0 {
		return m, nil
	}
	m.Dim = len(rows[0])
	m.Data = make([]float32, 0, len(rows)*m.Dim)
	for _, r := range rows {
		if len(r) != m.Dim {
			return nil, domain.NewDimensionMismatch("row width", len(r), m.Dim)
		}
		m.Data = append(m.Data, r...)
	}
	return m, nil
}

// Row returns row i without copying.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}
