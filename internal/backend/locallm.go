package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

const (
	localReadTimeout = 120 * time.Second
	localPullTimeout = 3600 * time.Second
)

// pullLocks deduplicates concurrent model downloads process-wide: the
// second caller for the same model blocks until the first pull finishes,
// then re-checks the installed list instead of pulling again.
var (
	pullMu    sync.Mutex
	pullLocks = map[string]*sync.Mutex{}
)

func pullLock(model string) *sync.Mutex {
	pullMu.Lock()
	defer pullMu.Unlock()
	l, ok := pullLocks[model]
	if !ok {
		l = &sync.Mutex{}
		pullLocks[model] = l
	}
	return l
}

// LocalLLM talks to an Ollama-compatible local server. Its Warmup checks
// model availability, auto-downloads a missing model, and issues a
// one-time warmup request so the first real translation does not pay the
// model-load latency; Translate itself does not check the model.
type LocalLLM struct {
	baseURL    string
	model      string
	profile    *config.Profile
	client     *http.Client
	pullClient *http.Client
	logf       func(string)

	warmOnce sync.Once
	warmErr  error
}

// NewLocalLLM creates the adapter. baseURL defaults to the standard Ollama
// port when empty.
func NewLocalLLM(baseURL, model string, profile *config.Profile, logf func(string)) *LocalLLM {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if logf == nil {
		logf = func(string) {}
	}
	return &LocalLLM{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		profile:    profile,
		client:     newPooledClient(localReadTimeout),
		pullClient: newPooledClient(localPullTimeout),
		logf:       logf,
	}
}

func (l *LocalLLM) Kind() config.BackendKind { return config.BackendLocalLLM }

func (l *LocalLLM) fail(kind ErrorKind, retryable bool, format string, args ...any) *Error {
	return &Error{Backend: "local_llm", Kind: kind, Message: fmt.Sprintf(format, args...), Retryable: retryable}
}

// ListModels returns the names of installed models.
func (l *LocalLLM) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, l.fail(ErrUnavailable, true, "cannot reach %s: %v", l.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, l.fail(ErrProtocol, transientStatus(resp.StatusCode), "list models: status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, l.fail(ErrProtocol, false, "list models: %v", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (l *LocalLLM) modelInstalled(ctx context.Context) (bool, error) {
	models, err := l.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m == l.model || strings.SplitN(m, ":", 2)[0] == l.model {
			return true, nil
		}
	}
	return false, nil
}

// EnsureModel checks that the configured model is installed, pulling it
// once when missing. Concurrent callers for the same model coalesce.
func (l *LocalLLM) EnsureModel(ctx context.Context) error {
	ok, err := l.modelInstalled(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	lock := pullLock(l.model)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have completed the pull while we waited.
	if ok, err := l.modelInstalled(ctx); err != nil || ok {
		return err
	}
	return l.pullModel(ctx)
}

type pullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

func (l *LocalLLM) pullModel(ctx context.Context) error {
	l.logf(fmt.Sprintf("model %q not installed, downloading", l.model))

	body, _ := json.Marshal(map[string]any{"name": l.model, "stream": true})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.pullClient.Do(req)
	if err != nil {
		return l.fail(ErrUnavailable, true, "pull %s: %v", l.model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return l.fail(ErrModelMissing, false, "pull %s: status %d", l.model, resp.StatusCode)
	}

	// Throttle progress output: emit only on status change, digest change,
	// or a >= 5 point percentage advance.
	var lastStatus, lastDigest string
	lastPercent := -5
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var p pullProgress
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			continue
		}
		if p.Error != "" {
			return l.fail(ErrModelMissing, false, "pull %s: %s", l.model, p.Error)
		}
		percent := -1
		if p.Total > 0 {
			percent = int(p.Completed * 100 / p.Total)
		}
		if p.Status != lastStatus || p.Digest != lastDigest || (percent >= 0 && percent-lastPercent >= 5) {
			if percent >= 0 {
				l.logf(fmt.Sprintf("pull %s: %s %d%%", l.model, p.Status, percent))
				lastPercent = percent
			} else {
				l.logf(fmt.Sprintf("pull %s: %s", l.model, p.Status))
			}
			lastStatus, lastDigest = p.Status, p.Digest
		}
	}
	if err := scanner.Err(); err != nil {
		return l.fail(ErrProtocol, false, "pull %s: %v", l.model, err)
	}
	l.logf(fmt.Sprintf("model %q ready", l.model))
	return nil
}

// Warmup issues one minimal generation per process so the model is resident
// before real work begins. Safe to call from multiple goroutines.
func (l *LocalLLM) Warmup(ctx context.Context) error {
	l.warmOnce.Do(func() {
		if err := l.EnsureModel(ctx); err != nil {
			l.warmErr = err
			return
		}
		req := &prompt.Request{
			SystemText: "Reply with the single word: ok",
			UserText:   "ok",
			Options:    prompt.Options{NumPredict: 4, KeepAlive: "30m"},
		}
		if _, err := l.chat(ctx, req); err != nil {
			l.warmErr = err
			return
		}
		l.logf("local model warmed up")
	})
	return l.warmErr
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

func (l *LocalLLM) chat(ctx context.Context, r *prompt.Request) (string, error) {
	opts := map[string]any{
		"temperature":    r.Options.Temperature,
		"top_p":          r.Options.TopP,
		"repeat_penalty": r.Options.RepeatPenalty,
	}
	if r.Options.NumPredict > 0 {
		opts["num_predict"] = r.Options.NumPredict
	}
	if r.Options.NumCtx > 0 {
		opts["num_ctx"] = r.Options.NumCtx
	}
	if r.Options.NumThread > 0 {
		opts["num_thread"] = r.Options.NumThread
	}
	if len(r.Options.Stop) > 0 {
		opts["stop"] = r.Options.Stop
	}

	body, err := json.Marshal(chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: r.SystemText},
			{Role: "user", Content: r.UserText},
		},
		Stream:    false,
		KeepAlive: r.Options.KeepAlive,
		Options:   opts,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", l.fail(ErrTimeout, true, "generate: %v", err)
		}
		return "", l.fail(ErrUnavailable, true, "cannot reach %s: %v", l.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", l.fail(ErrProtocol, false, "read response: %v", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", l.fail(ErrModelMissing, false, "model %q not loaded", l.model)
	}
	if resp.StatusCode != http.StatusOK {
		return "", l.fail(ErrProtocol, transientStatus(resp.StatusCode), "generate: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", l.fail(ErrProtocol, false, "parse response: %v", err)
	}
	if parsed.Error != "" {
		if looksLikeQuota(parsed.Error) {
			return "", l.fail(ErrQuota, false, "%s", parsed.Error)
		}
		return "", l.fail(ErrProtocol, false, "%s", parsed.Error)
	}
	return parsed.Message.Content, nil
}

// chatWithTimeoutRetry retries exactly once when the failure was a read
// timeout; all other failures surface immediately.
func (l *LocalLLM) chatWithTimeoutRetry(ctx context.Context, r *prompt.Request) (string, error) {
	out, err := l.chat(ctx, r)
	if err != nil && KindOf(err) == ErrTimeout && ctx.Err() == nil {
		return l.chat(ctx, r)
	}
	return out, err
}

// Translate sends one single-line prompt.
func (l *LocalLLM) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	return l.chatWithTimeoutRetry(ctx, r)
}

// TranslateBatch sends one numbered batch prompt and aligns the reply with
// the requested slots.
func (l *LocalLLM) TranslateBatch(ctx context.Context, r *prompt.Request) ([]string, error) {
	content, err := l.chatWithTimeoutRetry(ctx, r)
	if err != nil {
		return nil, err
	}
	return parseBatchResponse(content, r.BatchSize)
}
