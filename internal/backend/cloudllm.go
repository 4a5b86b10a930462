package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

// CloudLLM drives any OpenAI-compatible chat completion API.
type CloudLLM struct {
	client *openai.Client
	model  string
}

// NewCloudLLM builds the adapter. baseURL overrides the default OpenAI
// endpoint, which also covers OpenRouter-style compatible gateways.
func NewCloudLLM(baseURL, model, apiKey string) *CloudLLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = newPooledClient(60 * time.Second)
	return &CloudLLM{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *CloudLLM) Kind() config.BackendKind { return config.BackendCloudLLM }

// Warmup is a no-op for hosted models; there is nothing to page in.
func (c *CloudLLM) Warmup(ctx context.Context) error { return nil }

func (c *CloudLLM) classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		switch {
		case looksLikeQuota(msg) || apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &Error{Backend: "cloud_llm", Kind: ErrQuota, Message: msg, Retryable: apiErr.HTTPStatusCode == http.StatusTooManyRequests}
		case apiErr.HTTPStatusCode == http.StatusNotFound:
			return &Error{Backend: "cloud_llm", Kind: ErrModelMissing, Message: msg}
		case apiErr.HTTPStatusCode >= 500:
			return &Error{Backend: "cloud_llm", Kind: ErrProtocol, Message: msg, Retryable: true}
		default:
			return &Error{Backend: "cloud_llm", Kind: ErrProtocol, Message: msg}
		}
	}
	if isTimeout(err) {
		return &Error{Backend: "cloud_llm", Kind: ErrTimeout, Message: err.Error(), Retryable: true}
	}
	return &Error{Backend: "cloud_llm", Kind: ErrUnavailable, Message: err.Error(), Retryable: true}
}

// Translate sends [system, user] messages, no streaming.
func (c *CloudLLM) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	var out string
	err := retryTransient(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: r.SystemText},
				{Role: openai.ChatMessageRoleUser, Content: r.UserText},
			},
			Temperature: float32(r.Options.Temperature),
		})
		if err != nil {
			return c.classify(err)
		}
		if len(resp.Choices) == 0 {
			return &Error{Backend: "cloud_llm", Kind: ErrProtocol, Message: "empty choices"}
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	return out, err
}
