// Package langchain adapts langchaingo's OpenAI-compatible embedding client to domain.Embedder.
package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Config holds the langchaingo embedding settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Logger  *zap.Logger
}

// Embedder vectorizes text through langchaingo. Token usage is not reported by
// the wrapper, so results carry zero counts.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *zap.Logger
}

// NewEmbedder builds the client. Local servers without auth get the "none" token.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{embedder: emb, model: cfg.Model, logger: logger}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.countError()
		return domain.EmbeddingResult{}, fmt.Errorf("langchain embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(vec) == 0 {
		e.countError()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}
	e.countSuccess(start)
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.countError()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("langchain batch embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(vecs) != len(texts) {
		e.countError()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding response has %d rows for %d inputs: %w",
			len(vecs), len(texts), domain.ErrEmbeddingProviderError)
	}
	e.countSuccess(start)
	e.logger.Debug("batch embedded", zap.Int("count", len(texts)))
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

func (e *Embedder) countSuccess(start time.Time) {
	metrics.EmbeddingRequestsTotal.WithLabelValues("langchain", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("langchain", e.model).Observe(time.Since(start).Seconds())
}

func (e *Embedder) countError() {
	metrics.EmbeddingRequestsTotal.WithLabelValues("langchain", e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues("langchain", e.model, "api_error").Inc()
}
