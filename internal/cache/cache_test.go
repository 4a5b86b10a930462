package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	c, err := Open(dbPath, 8)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCapacityForRAMBuckets(t *testing.T) {
	cases := []struct {
		gib  float64
		want int
	}{
		{2, 1000}, {4, 1000}, {6, 2500}, {8, 2500},
		{12, 5000}, {16, 5000}, {24, 10000}, {32, 10000}, {64, 20000},
	}
	for _, tc := range cases {
		if got := capacityForRAM(tc.gib); got != tc.want {
			t.Errorf("capacityForRAM(%v) = %d, want %d", tc.gib, got, tc.want)
		}
	}
}

func TestSetRefusesEqualStrings(t *testing.T) {
	c := openTestCache(t)
	err := c.Set("Hello there", "HELLO THERE", "en", "pt-BR", "test", "", "")
	if err == nil {
		t.Fatal("expected error when original equals translated")
	}
}

func TestSetRefusesShortText(t *testing.T) {
	c := openTestCache(t)
	err := c.Set("hi", "oi", "en", "pt-BR", "test", "", "")
	if err == nil {
		t.Fatal("expected error for text shorter than 3 chars")
	}
}

func TestSetRefusesEmpty(t *testing.T) {
	c := openTestCache(t)
	if err := c.Set("", "translated", "en", "pt-BR", "test", "", ""); err == nil {
		t.Fatal("expected error for empty original")
	}
	if err := c.Set("original", "", "en", "pt-BR", "test", "", ""); err == nil {
		t.Fatal("expected error for empty translation")
	}
}

func TestGetMissOnEmptyCache(t *testing.T) {
	c := openTestCache(t)
	if _, ok := c.Get("Hello there.", "en", "pt-BR", "", ""); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestSetThenGetHitsV2(t *testing.T) {
	c := openTestCache(t)
	if err := c.Set("Hello there.", "Ola ai.", "en", "pt-BR", "local_llm", "prev line", "next line"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	translated, ok := c.Get("Hello there.", "en", "pt-BR", "prev line", "next line")
	if !ok {
		t.Fatal("expected v2 hit with matching context")
	}
	if translated != "Ola ai." {
		t.Errorf("unexpected translation: %q", translated)
	}
}

func TestGetFallsBackToV1AndPromotes(t *testing.T) {
	c := openTestCache(t)
	if err := c.Set("Hello there.", "Ola ai.", "en", "pt-BR", "local_llm", "", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Different context than was stored: v2 should miss, v1 should hit and
	// promote under the new v2 key.
	translated, ok := c.Get("Hello there.", "en", "pt-BR", "some prev", "some next")
	if !ok {
		t.Fatal("expected v1 fallback hit")
	}
	if translated != "Ola ai." {
		t.Errorf("unexpected translation: %q", translated)
	}

	// Second lookup with the same context should now be an exact v2 hit
	// without needing the v1 fallback.
	c.ClearMemory()
	translated2, ok := c.Get("Hello there.", "en", "pt-BR", "some prev", "some next")
	if !ok {
		t.Fatal("expected promoted v2 entry to hit on second lookup")
	}
	if translated2 != "Ola ai." {
		t.Errorf("unexpected translation after promotion: %q", translated2)
	}
}

func TestCleanupBadRemovesEqualEntries(t *testing.T) {
	c := openTestCache(t)
	// Insert directly at the disk layer to simulate pre-invariant data.
	if _, err := c.db.Exec(`INSERT INTO cache (hash, original_text, translated_text, source_lang, target_lang) VALUES ('deadbeef', 'same text', 'Same Text', 'en', 'pt-BR')`); err != nil {
		t.Fatalf("failed to seed bad entry: %v", err)
	}

	removed, err := c.CleanupBad()
	if err != nil {
		t.Fatalf("CleanupBad failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 row removed, got %d", removed)
	}
}

func TestClearAllEmptiesCache(t *testing.T) {
	c := openTestCache(t)
	if err := c.Set("Hello there.", "Ola ai.", "en", "pt-BR", "local_llm", "", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if _, ok := c.Get("Hello there.", "en", "pt-BR", "", ""); ok {
		t.Fatal("expected miss after ClearAll")
	}
}

func TestStatsReportsHitsAndMisses(t *testing.T) {
	c := openTestCache(t)
	c.Get("miss me", "en", "pt-BR", "", "")
	if err := c.Set("Hello there.", "Ola ai.", "en", "pt-BR", "local_llm", "", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	c.Get("Hello there.", "en", "pt-BR", "", "")

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries == 0 {
		t.Error("expected at least one disk entry")
	}
}

func TestOpenDefaultsPathWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	c, err := Open("", 4)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()
	defer os.Remove(filepath.Join(dir, "subtran_cache.db"))
}

func TestGetFuzzyNearDuplicate(t *testing.T) {
	c := openTestCache(t)

	if err := c.Set("Hello there, my friend!", "Olá, meu amigo!", "en", "pt-BR", "test", "", ""); err != nil {
		t.Fatal(err)
	}

	got, ok := c.GetFuzzy("Hello there, my friend", "en", "pt-BR", 0.9)
	if !ok || got != "Olá, meu amigo!" {
		t.Errorf("fuzzy = %q, %v", got, ok)
	}

	if _, ok := c.GetFuzzy("Completely different line.", "en", "pt-BR", 0.9); ok {
		t.Error("unrelated text must not fuzzy-match")
	}
}

func TestGetFuzzyRespectsLanguagePair(t *testing.T) {
	c := openTestCache(t)

	if err := c.Set("Hello there, my friend!", "Olá, meu amigo!", "en", "pt-BR", "test", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetFuzzy("Hello there, my friend!", "en", "es", 0.9); ok {
		t.Error("fuzzy match must not cross language pairs")
	}
}
