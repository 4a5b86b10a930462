package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

func testProfile() *config.Profile {
	return config.Default().Profile()
}

func newFakeOllama(t *testing.T, models []string, reply string) (*httptest.Server, *int64) {
	t.Helper()
	var chatCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		type m struct {
			Name string `json:"name"`
		}
		out := struct {
			Models []m `json:"models"`
		}{}
		for _, name := range models {
			out.Models = append(out.Models, m{Name: name})
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&chatCalls, 1)
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := chatResponse{}
		resp.Message.Content = reply
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &chatCalls
}

func TestLocalLLMTranslate(t *testing.T) {
	srv, _ := newFakeOllama(t, []string{"llama3:latest"}, "Olá.")
	l := NewLocalLLM(srv.URL, "llama3", testProfile(), nil)

	out, err := l.Translate(context.Background(), &prompt.Request{
		SystemText: "translate",
		UserText:   "Hello.",
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if out != "Olá." {
		t.Errorf("out = %q", out)
	}
}

func TestLocalLLMEnsureModelInstalled(t *testing.T) {
	srv, _ := newFakeOllama(t, []string{"llama3:latest"}, "")
	l := NewLocalLLM(srv.URL, "llama3", testProfile(), nil)

	if err := l.EnsureModel(context.Background()); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestLocalLLMWarmupRunsOnce(t *testing.T) {
	srv, chatCalls := newFakeOllama(t, []string{"llama3:latest"}, "ok")
	l := NewLocalLLM(srv.URL, "llama3", testProfile(), nil)

	for i := 0; i < 3; i++ {
		if err := l.Warmup(context.Background()); err != nil {
			t.Fatalf("warmup %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt64(chatCalls); n != 1 {
		t.Errorf("warmup issued %d chat calls, want 1", n)
	}
}

func TestLocalLLMUnavailable(t *testing.T) {
	l := NewLocalLLM("http://127.0.0.1:1", "llama3", testProfile(), nil)

	_, err := l.Translate(context.Background(), &prompt.Request{UserText: "hi"})
	if KindOf(err) != ErrUnavailable {
		t.Errorf("kind = %v, want unavailable", KindOf(err))
	}
}

func TestLocalLLMTranslateBatch(t *testing.T) {
	srv, _ := newFakeOllama(t, []string{"llama3:latest"}, "1│ um\n2│ dois")
	l := NewLocalLLM(srv.URL, "llama3", testProfile(), nil)

	out, err := l.TranslateBatch(context.Background(), &prompt.Request{
		UserText:  "1│ one\n2│ two",
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if out[0] != "um" || out[1] != "dois" {
		t.Errorf("out = %v", out)
	}
}

func TestLocalLLMQuotaErrorClassified(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Error: "monthly quota exceeded"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	l := NewLocalLLM(srv.URL, "llama3", testProfile(), nil)
	_, err := l.Translate(context.Background(), &prompt.Request{UserText: "hi"})
	if KindOf(err) != ErrQuota {
		t.Errorf("kind = %v, want quota", KindOf(err))
	}
}
