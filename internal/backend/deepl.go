package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

const deeplDefaultBaseURL = "https://api-free.deepl.com"

// DeepL calls the DeepL REST translate endpoint. Glossary entries ride in
// the request's context field as term hints, which steers the engine
// without requiring a pre-registered server-side glossary.
type DeepL struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDeepL builds the adapter. baseURL defaults to the free-tier endpoint.
func NewDeepL(baseURL, apiKey string) *DeepL {
	if baseURL == "" {
		baseURL = deeplDefaultBaseURL
	}
	return &DeepL{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newPooledClient(30 * time.Second),
	}
}

func (d *DeepL) Kind() config.BackendKind { return config.BackendDeepL }

func (d *DeepL) Warmup(ctx context.Context) error { return nil }

type deeplRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
	Context    string   `json:"context,omitempty"`
}

type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
	Message string `json:"message"`
}

// deeplLangCode maps ISO-locale codes onto DeepL's expected form
// (e.g. pt-BR -> PT-BR, en -> EN, auto -> "").
func deeplLangCode(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return strings.ToUpper(lang)
}

func glossaryHints(entries map[string]string) string {
	if len(entries) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = %s", k, entries[k]))
	}
	return "Terminology to preserve: " + strings.Join(parts, "; ")
}

// Translate sends one text with optional glossary hints.
func (d *DeepL) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	body, err := json.Marshal(deeplRequest{
		Text:       []string{r.Text},
		SourceLang: deeplLangCode(r.SourceLang),
		TargetLang: deeplLangCode(r.TargetLang),
		Context:    glossaryHints(r.GlossaryEntries),
	})
	if err != nil {
		return "", err
	}

	var out string
	err = retryTransient(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v2/translate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)

		resp, err := d.client.Do(req)
		if err != nil {
			if isTimeout(err) {
				return &Error{Backend: "deepl", Kind: ErrTimeout, Message: err.Error(), Retryable: true}
			}
			return &Error{Backend: "deepl", Kind: ErrUnavailable, Message: err.Error(), Retryable: true}
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Backend: "deepl", Kind: ErrProtocol, Message: err.Error()}
		}

		var parsed deeplResponse
		if resp.StatusCode != http.StatusOK {
			_ = json.Unmarshal(raw, &parsed)
			msg := parsed.Message
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			if resp.StatusCode == 456 || looksLikeQuota(msg) {
				return &Error{Backend: "deepl", Kind: ErrQuota, Message: msg}
			}
			return &Error{Backend: "deepl", Kind: ErrProtocol, Message: msg, Retryable: transientStatus(resp.StatusCode)}
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return &Error{Backend: "deepl", Kind: ErrProtocol, Message: err.Error()}
		}
		if len(parsed.Translations) == 0 {
			return &Error{Backend: "deepl", Kind: ErrProtocol, Message: "no translation returned"}
		}
		out = parsed.Translations[0].Text
		return nil
	})
	return out, err
}
