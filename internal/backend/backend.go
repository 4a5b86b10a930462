// Package backend provides a uniform facade over the supported translation
// backends: a local LLM server, OpenAI-compatible cloud chat APIs, Gemini,
// DeepL, Google Translate, and LibreTranslate. Callers hand it an assembled
// prompt and get text back; transport, retries, model management, and the
// failure taxonomy all live here.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

// ErrorKind classifies a backend failure for the orchestrator's policy
// decisions (retry, mark unavailable, keep original).
type ErrorKind string

const (
	ErrUnavailable  ErrorKind = "backend_unavailable"
	ErrTimeout      ErrorKind = "timeout"
	ErrQuota        ErrorKind = "quota_exceeded"
	ErrModelMissing ErrorKind = "model_missing"
	ErrProtocol     ErrorKind = "protocol_error"
)

// Error is the typed failure every adapter surfaces upward.
type Error struct {
	Backend   string
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Backend, e.Kind, e.Message)
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// looksLikeQuota detects quota exhaustion by message content, since the
// providers disagree on status codes for it.
func looksLikeQuota(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "limit") || strings.Contains(m, "billing")
}

// ErrBatchDesync signals that a batch response could not be aligned with
// the request; the caller must fall back to line-by-line translation.
var ErrBatchDesync = errors.New("batch response could not be parsed")

// Translator is the single capability the pipeline depends on.
type Translator interface {
	Kind() config.BackendKind
	Translate(ctx context.Context, req *prompt.Request) (string, error)
	Warmup(ctx context.Context) error
}

// BatchTranslator is implemented by backends that can answer a numbered
// batch prompt with one call. A missing slot comes back as an empty string;
// ErrBatchDesync means the whole response was unusable.
type BatchTranslator interface {
	Translator
	TranslateBatch(ctx context.Context, req *prompt.Request) ([]string, error)
}

// New constructs the adapter for the identity's backend kind. logf receives
// operational messages (model downloads, warmup); pass nil to discard.
func New(id config.BackendIdentity, profile *config.Profile, logf func(string)) (Translator, error) {
	if logf == nil {
		logf = func(string) {}
	}
	switch id.Kind {
	case config.BackendLocalLLM:
		return NewLocalLLM(id.BaseURL, id.Model, profile, logf), nil
	case config.BackendCloudLLM:
		return NewCloudLLM(id.BaseURL, id.Model, id.APIKey), nil
	case config.BackendGemini:
		return NewGemini(id.Model, id.APIKey), nil
	case config.BackendDeepL:
		return NewDeepL(id.BaseURL, id.APIKey), nil
	case config.BackendGoogle:
		return NewGoogle(id.APIKey), nil
	case config.BackendLibreTranslate:
		return NewLibreTranslate(id.BaseURL, id.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", id.Kind)
	}
}
