package domain

import (
	"context"
	"fmt"
	"math"
)

// DefaultDimensions is the vector width of the reference multilingual MiniLM model.
const DefaultDimensions = 384

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback calls Embed once per text for providers without a native batch call.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// Normalize scales v to unit L2 norm in place and returns it.
// A zero vector is returned unchanged (its norm is treated as 1).
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// NormalizingEmbedder L2-normalizes every vector produced by inner and
// enforces a fixed output width when dims > 0.
type NormalizingEmbedder struct {
	inner Embedder
	dims  int
}

// NewNormalizingEmbedder wraps inner. dims <= 0 disables the width check.
func NewNormalizingEmbedder(inner Embedder, dims int) *NormalizingEmbedder {
	return &NormalizingEmbedder{inner: inner, dims: dims}
}

// Dimensions returns the enforced vector width (0 when unchecked).
func (e *NormalizingEmbedder) Dimensions() int { return e.dims }

// Embed delegates to inner and normalizes the result.
func (e *NormalizingEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	if err := e.check(res.Embedding); err != nil {
		return EmbeddingResult{}, err
	}
	res.Embedding = Normalize(res.Embedding)
	return res, nil
}

// BatchEmbed normalizes each row. An empty input yields an empty matrix without calling inner.
func (e *NormalizingEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{Embeddings: [][]float32{}}, nil
	}

	var (
		res BatchEmbeddingResult
		err error
	)
	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = BatchFallback(ctx, e.inner, texts)
	}
	if err != nil {
		return BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(texts) {
		return BatchEmbeddingResult{}, NewDimensionMismatch("batch rows", len(res.Embeddings), len(texts))
	}
	for i := range res.Embeddings {
		if err := e.check(res.Embeddings[i]); err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("row %d: %w", i, err)
		}
		res.Embeddings[i] = Normalize(res.Embeddings[i])
	}
	return res, nil
}

func (e *NormalizingEmbedder) check(v []float32) error {
	if e.dims > 0 && len(v) != e.dims {
		return NewDimensionMismatch("embedding width", len(v), e.dims)
	}
	return nil
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// BatchEmbed prepends instruction to each text and delegates to inner BatchEmbedder.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}

	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, prefixed)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
		}
		return res, nil
	}

	res, err := BatchFallback(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed fallback: %w", err)
	}
	return res, nil
}
