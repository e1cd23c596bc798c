package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Embedder produces query vectors through an OpenAI-compatible /embeddings endpoint
// (a local text-embeddings server, Nebius, OpenAI itself).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	resp, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder with a single API call.
// Rows are returned in input order regardless of the order the server lists them.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	resp, err := e.create(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(resp.Data) != len(texts) {
		e.countError("count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding response has %d rows for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingProviderError)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i := range data {
		out[i] = data[i].Embedding
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *Embedder) create(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		e.countError("api_error")
		e.logger.Debug("embedding request failed", zap.Int("inputs", len(input)), zap.Error(err))
		return openai.EmbeddingResponse{}, parseAPIError(err)
	}
	if len(resp.Data) == 0 {
		e.countError("empty_response")
		return openai.EmbeddingResponse{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	model := string(e.model)
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return resp, nil
}

func (e *Embedder) countError(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), kind).Inc()
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// The result wraps the first of wrap (default ErrEmbeddingProviderError); an embedding 429
// becomes ErrEmbeddingQuotaExceeded.
func parseAPIError(err error, wrap ...error) error {
	target := domain.ErrEmbeddingProviderError
	if len(wrap) > 0 {
		target = wrap[0]
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests && target == domain.ErrEmbeddingProviderError {
			target = domain.ErrEmbeddingQuotaExceeded
		}
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("provider API error %d: %s: %w", reqErr.HTTPStatusCode, detail, target)
		}
		return fmt.Errorf("provider API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), target)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests && target == domain.ErrEmbeddingProviderError {
			target = domain.ErrEmbeddingQuotaExceeded
		}
		return fmt.Errorf("provider API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, target)
	}

	return fmt.Errorf("provider request failed: %v: %w", err, target)
}

// extractDetail достаёт поле "detail" из JSON-тела ошибки (формат Nebius / TEI).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
