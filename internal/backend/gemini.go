package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

// Gemini drives Google's Gemini models through the official SDK.
type Gemini struct {
	model  string
	apiKey string

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// NewGemini builds the adapter. The SDK client is created lazily on first
// use because construction needs a context.
func NewGemini(model, apiKey string) *Gemini {
	return &Gemini{model: model, apiKey: apiKey}
}

func (g *Gemini) Kind() config.BackendKind { return config.BackendGemini }

func (g *Gemini) init(ctx context.Context) error {
	g.initOnce.Do(func() {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			g.initErr = &Error{Backend: "gemini", Kind: ErrUnavailable, Message: err.Error()}
			return
		}
		g.client = client
	})
	return g.initErr
}

// Warmup only verifies the client can be constructed.
func (g *Gemini) Warmup(ctx context.Context) error { return g.init(ctx) }

func (g *Gemini) classify(err error) *Error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case looksLikeQuota(msg) || strings.Contains(lower, "resource exhausted"):
		return &Error{Backend: "gemini", Kind: ErrQuota, Message: msg, Retryable: true}
	case strings.Contains(lower, "not found"):
		return &Error{Backend: "gemini", Kind: ErrModelMissing, Message: msg}
	case isTimeout(err):
		return &Error{Backend: "gemini", Kind: ErrTimeout, Message: msg, Retryable: true}
	default:
		return &Error{Backend: "gemini", Kind: ErrProtocol, Message: msg}
	}
}

// Translate folds the system text into the prompt, since subtitle lines are
// short enough that a separate system instruction buys nothing here.
func (g *Gemini) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	if err := g.init(ctx); err != nil {
		return "", err
	}
	if g.model == "" {
		return "", &Error{Backend: "gemini", Kind: ErrModelMissing, Message: "no model configured"}
	}

	full := fmt.Sprintf("%s\n\n%s", r.SystemText, r.UserText)
	var out string
	err := retryTransient(ctx, func() error {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(full), nil)
		if err != nil {
			return g.classify(err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil ||
			len(result.Candidates[0].Content.Parts) == 0 {
			return &Error{Backend: "gemini", Kind: ErrProtocol, Message: "empty response"}
		}
		out = strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
		return nil
	})
	return out, err
}
