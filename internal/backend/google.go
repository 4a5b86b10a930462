package backend

import (
	"context"
	"strings"
	"sync"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

// Google drives the Google Cloud Translation API (plain MT, not Gemini).
type Google struct {
	apiKey string

	initOnce sync.Once
	client   *translate.Client
	initErr  error
}

// NewGoogle builds the adapter; the SDK client is created lazily.
func NewGoogle(apiKey string) *Google {
	return &Google{apiKey: apiKey}
}

func (g *Google) Kind() config.BackendKind { return config.BackendGoogle }

func (g *Google) init(ctx context.Context) error {
	g.initOnce.Do(func() {
		client, err := translate.NewClient(ctx, option.WithAPIKey(g.apiKey))
		if err != nil {
			g.initErr = &Error{Backend: "google", Kind: ErrUnavailable, Message: err.Error()}
			return
		}
		g.client = client
	})
	return g.initErr
}

func (g *Google) Warmup(ctx context.Context) error { return g.init(ctx) }

func (g *Google) classify(err error) *Error {
	msg := err.Error()
	switch {
	case looksLikeQuota(msg):
		return &Error{Backend: "google", Kind: ErrQuota, Message: msg}
	case isTimeout(err):
		return &Error{Backend: "google", Kind: ErrTimeout, Message: msg, Retryable: true}
	default:
		return &Error{Backend: "google", Kind: ErrProtocol, Message: msg, Retryable: true}
	}
}

// Translate sends one text with the target language code.
func (g *Google) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	if err := g.init(ctx); err != nil {
		return "", err
	}
	tag, err := language.Parse(r.TargetLang)
	if err != nil {
		return "", &Error{Backend: "google", Kind: ErrProtocol, Message: "bad target language " + r.TargetLang}
	}

	var out string
	err = retryTransient(ctx, func() error {
		results, err := g.client.Translate(ctx, []string{r.Text}, tag, nil)
		if err != nil {
			return g.classify(err)
		}
		if len(results) == 0 {
			return &Error{Backend: "google", Kind: ErrProtocol, Message: "no translation returned"}
		}
		out = strings.TrimSpace(results[0].Text)
		return nil
	})
	return out, err
}
