package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

// LibreTranslate calls a LibreTranslate server's single translate endpoint.
type LibreTranslate struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewLibreTranslate builds the adapter. baseURL defaults to a local server.
func NewLibreTranslate(baseURL, apiKey string) *LibreTranslate {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &LibreTranslate{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newPooledClient(30 * time.Second),
	}
}

func (l *LibreTranslate) Kind() config.BackendKind { return config.BackendLibreTranslate }

func (l *LibreTranslate) Warmup(ctx context.Context) error { return nil }

// baseLang reduces an ISO-locale code to the two-letter form LibreTranslate
// expects (pt-BR -> pt).
func baseLang(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if lang == "" {
		return "auto"
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}

// Translate sends one text with source/target codes.
func (l *LibreTranslate) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	payload := map[string]string{
		"q":      r.Text,
		"source": baseLang(r.SourceLang),
		"target": baseLang(r.TargetLang),
		"format": "text",
	}
	if l.apiKey != "" {
		payload["api_key"] = l.apiKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var out string
	err = retryTransient(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := l.client.Do(req)
		if err != nil {
			if isTimeout(err) {
				return &Error{Backend: "libretranslate", Kind: ErrTimeout, Message: err.Error(), Retryable: true}
			}
			return &Error{Backend: "libretranslate", Kind: ErrUnavailable, Message: err.Error(), Retryable: true}
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Backend: "libretranslate", Kind: ErrProtocol, Message: err.Error()}
		}

		var parsed struct {
			TranslatedText string `json:"translatedText"`
			Error          string `json:"error"`
		}
		if resp.StatusCode != http.StatusOK {
			_ = json.Unmarshal(raw, &parsed)
			msg := parsed.Error
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			if looksLikeQuota(msg) {
				return &Error{Backend: "libretranslate", Kind: ErrQuota, Message: msg}
			}
			return &Error{Backend: "libretranslate", Kind: ErrProtocol, Message: msg, Retryable: transientStatus(resp.StatusCode)}
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return &Error{Backend: "libretranslate", Kind: ErrProtocol, Message: err.Error()}
		}
		out = parsed.TranslatedText
		return nil
	})
	return out, err
}
