package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/logger"
)

// DefaultMaxAPIBatchSize: максимальный размер батча для одного API-запроса.
const DefaultMaxAPIBatchSize = 256

// DefaultSlowThreshold is the latency above which a single query embedding is logged at warn.
const DefaultSlowThreshold = 2 * time.Second

// Options tune the instrumented embedder. Zero values select the defaults.
type Options struct {
	MaxBatchSize  int
	SlowThreshold time.Duration
}

// InstrumentedEmbedder wraps a provider with request logging and batch chunking.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai
// and transport/langchain; this layer owns the log lines.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	maxBatch int
	slow     time.Duration
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	opts Options, logger *zap.Logger,
) *InstrumentedEmbedder {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxAPIBatchSize
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		maxBatch: opts.MaxBatchSize,
		slow:     opts.SlowThreshold,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	log := p.log(ctx)
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		log.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.String("error_class", classify(err)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	fields := []zap.Field{
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	}
	if duration > p.slow {
		log.Warn("Slow embedding request", fields...)
	} else {
		log.Debug("Embedding request completed", fields...)
	}

	return result, nil
}

// BatchEmbed разбивает на sub-batches и делегирует inner.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.log(ctx).Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	var allEmbeddings [][]float32
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += p.maxBatch {
		end := min(offset+p.maxBatch, len(texts))
		chunk := texts[offset:end]

		chunkResult, err := p.embedInner(ctx, chunk)
		if err != nil {
			p.log(ctx).Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.String("error_class", classify(err)),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		allEmbeddings = append(allEmbeddings, chunkResult.Embeddings...)
		totalPrompt += chunkResult.PromptTokens
		totalTokens += chunkResult.TotalTokens
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   allEmbeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

func (p *InstrumentedEmbedder) embedInner(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	if l := logger.FromContext(ctx); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return p.logger
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return "quota"
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return "provider"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
