// Package llm wraps an OpenAI-compatible chat-completions API (OpenRouter
// by default) behind a small client the ops layer calls with assembled
// messages. The history core never touches this package.
package llm

import (
	"context"
	stderrors "errors"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// Environment variables checked, in order, for the API key.
const (
	EnvAPIKey         = "WEFT_API_KEY"
	EnvFallbackAPIKey = "OPENROUTER_API_KEY"
)

// Client sends assembled conversation messages to the generation API.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a Client from config, reading the API key from the
// environment (WEFT_API_KEY, then OPENROUTER_API_KEY).
func New(cfg *config.Config) (*Client, error) {
	key := os.Getenv(EnvAPIKey)
	if key == "" {
		key = os.Getenv(EnvFallbackAPIKey)
	}
	if key == "" {
		return nil, errors.NewInvalidRequest("no API key: set WEFT_API_KEY or OPENROUTER_API_KEY")
	}
	return NewWithKey(key, cfg.BaseURL, cfg.Model), nil
}

// NewWithKey creates a Client with an explicit key, base URL, and model.
func NewWithKey(key, baseURL, model string) *Client {
	apiCfg := openai.DefaultConfig(key)
	if baseURL != "" {
		apiCfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: model,
	}
}

// Model returns the model identifier sent with each request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the messages upstream and returns the assistant's text.
// Upstream failures map to UPSTREAM_ERROR; no retries are attempted.
func (c *Client) Complete(ctx context.Context, msgs []history.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toAPIMessages(msgs),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewCancelled("completion")
		}
		var apiErr *openai.APIError
		if stderrors.As(err, &apiErr) {
			return "", errors.NewUpstream(apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", errors.NewUpstream(0, err.Error())
	}

	if len(resp.Choices) == 0 {
		return "", errors.NewUpstream(200, "response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// toAPIMessages converts assembled messages to the wire format. Role names
// match the API's exactly (system/user/assistant).
func toAPIMessages(msgs []history.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
