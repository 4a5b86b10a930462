package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
)

func TestDeepLTranslateCarriesGlossaryHints(t *testing.T) {
	var got deeplRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "DeepL-Auth-Key k" {
			t.Errorf("auth header = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(deeplResponse{Translations: []struct {
			Text string `json:"text"`
		}{{Text: "Bom dia."}}})
	}))
	t.Cleanup(srv.Close)

	d := NewDeepL(srv.URL, "k")
	out, err := d.Translate(context.Background(), &prompt.Request{
		Text:            "Good morning.",
		SourceLang:      "en",
		TargetLang:      "pt-BR",
		GlossaryEntries: map[string]string{"senpai": "senpai"},
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if out != "Bom dia." {
		t.Errorf("out = %q", out)
	}
	if got.TargetLang != "PT-BR" || got.SourceLang != "EN" {
		t.Errorf("langs = %q -> %q", got.SourceLang, got.TargetLang)
	}
	if !strings.Contains(got.Context, "senpai = senpai") {
		t.Errorf("context = %q", got.Context)
	}
}

func TestDeepLQuotaStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(456)
		json.NewEncoder(w).Encode(map[string]string{"message": "character limit reached"})
	}))
	t.Cleanup(srv.Close)

	d := NewDeepL(srv.URL, "k")
	_, err := d.Translate(context.Background(), &prompt.Request{Text: "hi", TargetLang: "pt-BR"})
	if KindOf(err) != ErrQuota {
		t.Errorf("kind = %v, want quota", KindOf(err))
	}
}

func TestLibreTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["source"] != "en" || req["target"] != "pt" {
			t.Errorf("langs = %q -> %q", req["source"], req["target"])
		}
		json.NewEncoder(w).Encode(map[string]string{"translatedText": "Oi."})
	}))
	t.Cleanup(srv.Close)

	l := NewLibreTranslate(srv.URL, "")
	out, err := l.Translate(context.Background(), &prompt.Request{
		Text:       "Hi.",
		SourceLang: "en",
		TargetLang: "pt-BR",
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if out != "Oi." {
		t.Errorf("out = %q", out)
	}
}

func TestFactoryKinds(t *testing.T) {
	profile := testProfile()
	kinds := []config.BackendKind{
		config.BackendLocalLLM, config.BackendCloudLLM, config.BackendGemini,
		config.BackendDeepL, config.BackendGoogle, config.BackendLibreTranslate,
	}
	for _, kind := range kinds {
		tr, err := New(config.BackendIdentity{Kind: kind, Model: "m", APIKey: "k"}, profile, nil)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if tr.Kind() != kind {
			t.Errorf("%s: Kind() = %v", kind, tr.Kind())
		}
	}

	if _, err := New(config.BackendIdentity{Kind: "bogus"}, profile, nil); err == nil {
		t.Error("unknown kind must fail")
	}
}

func TestRetryTransientSurfacesNonRetryableImmediately(t *testing.T) {
	calls := 0
	err := retryTransient(context.Background(), func() error {
		calls++
		return &Error{Backend: "x", Kind: ErrProtocol, Message: "boom"}
	})
	if err == nil || calls != 1 {
		t.Errorf("non-retryable: calls = %d, err = %v", calls, err)
	}
}
