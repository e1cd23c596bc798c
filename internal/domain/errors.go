package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a malformed search or chat request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDimensionMismatch signals a vector/metadata count or vector width mismatch.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrIndexUnavailable signals that no index snapshot is loaded.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrCategoriesUnavailable signals that the category tree could not be loaded.
	ErrCategoriesUnavailable = errors.New("categories unavailable")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrResponderUnavailable signals that the reply generator failed.
	ErrResponderUnavailable = errors.New("responder unavailable")
)

// DimensionError wraps ErrDimensionMismatch with the two sizes that disagree.
type DimensionError struct {
	What string
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s %d != %d", ErrDimensionMismatch.Error(), e.What, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(what string, got, want int) error {
	return &DimensionError{What: what, Got: got, Want: want}
}
