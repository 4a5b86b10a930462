package prompt

import (
	"strings"
	"testing"

	"github.com/subtran/subtran/internal/collab"
	"github.com/subtran/subtran/internal/config"
)

func testProfile() *config.Profile {
	return config.Default().Profile()
}

func TestBuildLocalLLMIncludesAllSections(t *testing.T) {
	b := NewBuilder(config.BackendLocalLLM, testProfile())
	req := b.Build(Input{
		Text:       "Let's go.",
		Glossary:   map[string]string{"akane": "Akane"},
		Metadata:   &collab.SeriesMetadata{Title: "Test Show", Genres: []string{"action"}, Kind: "anime"},
		Context:    []string{"Vamos embora.", "Rápido."},
		SourceLang: "en",
		TargetLang: "pt-BR",
	})

	if req.UserText != "Let's go." {
		t.Fatalf("user text = %q", req.UserText)
	}
	for _, want := range []string{"Glossary", "akane -> Akane", "Test Show", "Previous context", "Examples:"} {
		if !strings.Contains(req.SystemText, want) {
			t.Errorf("system text missing %q:\n%s", want, req.SystemText)
		}
	}
}

func TestBuildPaidLLMIsLean(t *testing.T) {
	b := NewBuilder(config.BackendCloudLLM, testProfile())
	req := b.Build(Input{
		Text:       "Hello.",
		Metadata:   &collab.SeriesMetadata{Title: "Test Show", Genres: []string{"action"}},
		SourceLang: "en",
		TargetLang: "pt-BR",
	})

	if strings.Contains(req.SystemText, "Examples:") {
		t.Error("paid backend must not carry few-shot examples")
	}
	if est := NewEstimator().EstimateTokens(strings.SplitN(req.SystemText, "\n", 2)[0]); est > 20 {
		t.Errorf("paid system rule estimated at %d tokens, want <= 20", est)
	}
}

func TestBudgetTrimsFewshotAndContextFirst(t *testing.T) {
	p := testProfile()
	p.TokenBudget = 40
	b := NewBuilder(config.BackendLocalLLM, p)
	req := b.Build(Input{
		Text:       "Hello there.",
		Glossary:   map[string]string{"akane": "Akane"},
		Metadata:   &collab.SeriesMetadata{Title: "A Very Long Series Title", Genres: []string{"drama"}},
		Context:    []string{"linha um", "linha dois"},
		SourceLang: "en",
		TargetLang: "pt-BR",
	})

	if strings.Contains(req.SystemText, "Examples:") {
		t.Error("few-shot should be the first section dropped")
	}
	if !strings.Contains(req.SystemText, "akane -> Akane") {
		t.Error("glossary must never be dropped")
	}
	if req.UserText == "" {
		t.Error("user text must never be dropped")
	}
}

func TestFewshotDisabledForUnsupportedPair(t *testing.T) {
	b := NewBuilder(config.BackendLocalLLM, testProfile())
	req := b.Build(Input{
		Text:       "Bonjour.",
		SourceLang: "fr",
		TargetLang: "de",
	})
	if strings.Contains(req.SystemText, "Examples:") {
		t.Error("few-shot must be disabled for fr->de")
	}
}

func TestBuildDeepLCarriesGlossaryEntriesAndContextPrefix(t *testing.T) {
	b := NewBuilder(config.BackendDeepL, testProfile())
	req := b.Build(Input{
		Text:       "Good morning.",
		Glossary:   map[string]string{"senpai": "senpai"},
		Context:    []string{"Oi.", "Tudo bem?"},
		SourceLang: "en",
		TargetLang: "pt-BR",
	})
	if !strings.HasPrefix(req.Text, "[Context: Oi. // Tudo bem?] ") {
		t.Errorf("text = %q", req.Text)
	}
	if req.GlossaryEntries["senpai"] != "senpai" {
		t.Errorf("glossary entries = %v", req.GlossaryEntries)
	}
}

func TestBuildPlainMTKeepHints(t *testing.T) {
	b := NewBuilder(config.BackendLibreTranslate, testProfile())
	req := b.Build(Input{
		Text:       "Akane is here.",
		Glossary:   map[string]string{"akane": "Akane"},
		SourceLang: "en",
		TargetLang: "pt-BR",
	})
	if !strings.HasPrefix(req.Text, "[Keep: akane=Akane] ") {
		t.Errorf("text = %q", req.Text)
	}
}

func TestBuildBatchNumbersLines(t *testing.T) {
	b := NewBuilder(config.BackendLocalLLM, testProfile())
	req := b.BuildBatch(Input{SourceLang: "en", TargetLang: "pt-BR"},
		[]string{"One.", "Two.", "Three."})

	if req.BatchSize != 3 {
		t.Fatalf("batch size = %d", req.BatchSize)
	}
	for _, want := range []string{"1│ One.", "2│ Two.", "3│ Three."} {
		if !strings.Contains(req.UserText, want) {
			t.Errorf("batch block missing %q:\n%s", want, req.UserText)
		}
	}
	if !strings.Contains(req.SystemText, "exactly 3 lines") {
		t.Error("batch instruction missing")
	}
	for _, stop := range req.Options.Stop {
		if stop == "\n" {
			t.Error("batch prompts must not stop on newline")
		}
	}
}

func TestSingleLineStopSequences(t *testing.T) {
	b := NewBuilder(config.BackendLocalLLM, testProfile())
	req := b.Build(Input{Text: "Hi.", SourceLang: "en", TargetLang: "pt-BR"})

	want := map[string]bool{"\n": false, "Note:": false, "English:": false, "Previous context": false}
	for _, stop := range req.Options.Stop {
		if _, ok := want[stop]; ok {
			want[stop] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing stop sequence %q", k)
		}
	}
}

func TestEstimateTokensRoughlyFourCharsEach(t *testing.T) {
	est := NewEstimator()
	if got := est.EstimateTokens(""); got != 0 {
		t.Fatalf("empty = %d", got)
	}
	text := strings.Repeat("word ", 100)
	got := est.EstimateTokens(text)
	if got < 80 || got > 180 {
		t.Errorf("500 chars estimated at %d tokens", got)
	}
}

func TestEstimateCostUSDPaidModelIsPositive(t *testing.T) {
	est := NewEstimator()
	lines := []string{"Hello there, how are you today?"}
	paid := est.EstimateCostUSD(lines, "gpt-4o")
	if paid <= 0 {
		t.Errorf("gpt-4o cost = %v", paid)
	}
}
