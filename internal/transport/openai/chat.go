package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/metrics"
)

// ChatClient generates answers via the OpenAI-compatible chat completion API.
type ChatClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewChatClient creates an OpenAI-compatible chat completion client.
func NewChatClient(cfg *Config) *ChatClient {
	return &ChatClient{
		client: newClient(cfg),
		model:  cfg.ChatModel,
		logger: cfg.Logger,
	}
}

// Complete sends one system+user exchange and returns the assistant text.
// Failures are wrapped with domain.ErrModelUnavailable.
func (c *ChatClient) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestDuration.WithLabelValues(c.model, "error").Observe(duration.Seconds())
		return "", parseAPIError(err, domain.ErrModelUnavailable)
	}
	if len(resp.Choices) == 0 {
		metrics.ChatRequestDuration.WithLabelValues(c.model, "error").Observe(duration.Seconds())
		return "", fmt.Errorf("empty chat completion response: %w", domain.ErrModelUnavailable)
	}

	metrics.ChatRequestDuration.WithLabelValues(c.model, "success").Observe(duration.Seconds())
	return resp.Choices[0].Message.Content, nil
}
