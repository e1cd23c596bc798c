package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// ResponderConfig holds the chat-completions settings for reply generation.
type ResponderConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *zap.Logger
}

// Responder writes the chat reply through an OpenAI-compatible /chat/completions endpoint.
type Responder struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewResponder creates an external reply generator.
func NewResponder(cfg *ResponderConfig) *Responder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Name identifies the responder in logs and metrics.
func (r *Responder) Name() string { return "external" }

// Reply sends the system instruction, the user query and the product list, and
// returns the first choice. Errors wrap domain.ErrResponderUnavailable.
func (r *Responder) Reply(ctx context.Context, instruction, query, productsContext string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(query, productsContext)},
		},
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseAPIError(err, domain.ErrResponderUnavailable)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion: %w", domain.ErrResponderUnavailable)
	}

	r.logger.Debug("reply generated",
		zap.String("model", r.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func userPrompt(query, productsContext string) string {
	return "Запрос покупателя: " + query + "\n\nНайденные товары:\n" + productsContext
}
