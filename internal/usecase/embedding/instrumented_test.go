package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/logger"
)

type mockEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	batchCalls  int
	batchSizes  []int
	delay       time.Duration
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	if m.batchResult.Embeddings != nil {
		return m.batchResult, nil
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// plainMockEmbedder implements only Embedder, not BatchEmbedder.
type plainMockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *plainMockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 100,
		TotalTokens:  100,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", Options{}, zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
	if result.TotalTokens != 100 {
		t.Fatalf("expected 100 total tokens, got %d", result.TotalTokens)
	}
}

func TestInstrumentedEmbedder_ErrorKeepsSentinel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inner := &mockEmbedder{err: fmt.Errorf("429: %w", domain.ErrEmbeddingQuotaExceeded)}
	p := NewInstrumentedEmbedder(inner, "test-err", "test-model-e", Options{}, zap.New(core))

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota sentinel, got %v", err)
	}

	entries := logs.FilterMessage("Embedding request failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 failure log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["error_class"]; got != "quota" {
		t.Errorf("error_class = %v, want quota", got)
	}
}

func TestInstrumentedEmbedder_SlowRequestWarns(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{1}},
		delay:  5 * time.Millisecond,
	}
	p := NewInstrumentedEmbedder(inner, "p", "m", Options{SlowThreshold: time.Millisecond}, zap.New(core))

	if _, err := p.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessage("Slow embedding request").Len() != 1 {
		t.Errorf("expected slow request warning, got %v", logs.All())
	}
}

func TestInstrumentedEmbedder_UsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core).With(zap.String("request_id", "r1")))

	inner := &mockEmbedder{err: errors.New("boom")}
	p := NewInstrumentedEmbedder(inner, "p", "m", Options{}, zap.NewNop())

	_, _ = p.Embed(ctx, "x")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "r1" {
		t.Errorf("request logger fields missing: %v", entries[0].ContextMap())
	}
	if entries[0].ContextMap()["error_class"] != "other" {
		t.Errorf("error_class = %v", entries[0].ContextMap()["error_class"])
	}
}

func TestInstrumentedEmbedder_BatchEmbed_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	p := NewInstrumentedEmbedder(inner, "test-batch", "test-model-b", Options{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if inner.batchCalls != 1 {
		t.Errorf("expected 1 batch call, got %d", inner.batchCalls)
	}
	if res.TotalTokens != 30 {
		t.Errorf("expected 30 total tokens, got %d", res.TotalTokens)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_Chunks(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 1}}
	p := NewInstrumentedEmbedder(inner, "p", "m", Options{MaxBatchSize: 2}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 5 {
		t.Fatalf("expected 5 embeddings, got %d", len(res.Embeddings))
	}
	want := []int{2, 2, 1}
	if len(inner.batchSizes) != len(want) {
		t.Fatalf("chunk sizes = %v, want %v", inner.batchSizes, want)
	}
	for i := range want {
		if inner.batchSizes[i] != want[i] {
			t.Errorf("chunk %d size = %d, want %d", i, inner.batchSizes[i], want[i])
		}
	}
	if res.TotalTokens != 5 {
		t.Errorf("expected 5 total tokens, got %d", res.TotalTokens)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", Options{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil for empty input")
	}
	if inner.batchCalls != 0 {
		t.Errorf("inner must not be called for empty input")
	}
}

func TestInstrumentedEmbedder_BatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{
		result:   domain.EmbeddingResult{Embedding: []float32{0.1}},
		batchErr: fmt.Errorf("api error: %w", domain.ErrEmbeddingProviderError),
	}
	p := NewInstrumentedEmbedder(inner, "test-err", "model", Options{}, zap.NewNop())

	_, err := p.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_FallbackToSingle(t *testing.T) {
	// Inner без BatchEmbedder, fallback
	inner := &plainMockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	p := NewInstrumentedEmbedder(inner, "test-fb", "model", Options{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 fallback Embed calls, got %d", inner.calls)
	}
}
