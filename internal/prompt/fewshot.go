package prompt

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed fewshot.toml
var fewshotData string

// Example is one bundled source/target pair used to bias translation style.
type Example struct {
	Genre  string `toml:"genre"`
	Source string `toml:"source"`
	Target string `toml:"target"`
}

type fewshotFile struct {
	Examples []Example `toml:"examples"`
}

var (
	fewshotOnce sync.Once
	fewshotAll  []Example
)

func loadFewshot() []Example {
	fewshotOnce.Do(func() {
		var f fewshotFile
		if err := toml.Unmarshal([]byte(fewshotData), &f); err == nil {
			fewshotAll = f.Examples
		}
	})
	return fewshotAll
}

// fewshotSupported reports whether the bundled examples apply to the
// requested language pair. The pack is English -> Brazilian Portuguese
// only; every other pair runs without few-shot until examples exist for it.
func fewshotSupported(src, tgt string) bool {
	src = strings.ToLower(src)
	tgt = strings.ToLower(tgt)
	srcOK := src == "auto" || strings.HasPrefix(src, "en")
	tgtOK := strings.HasPrefix(tgt, "pt")
	return srcOK && tgtOK
}

// matchExamples returns up to max examples whose genre matches one of the
// series genres, topped up with "general" examples when the genre pool is
// thin.
func matchExamples(genres []string, max int) []Example {
	if max <= 0 {
		return nil
	}
	want := make(map[string]bool, len(genres))
	for _, g := range genres {
		want[strings.ToLower(strings.TrimSpace(g))] = true
	}

	var out []Example
	for _, ex := range loadFewshot() {
		if len(out) >= max {
			return out
		}
		if want[ex.Genre] {
			out = append(out, ex)
		}
	}
	for _, ex := range loadFewshot() {
		if len(out) >= max {
			break
		}
		if ex.Genre == "general" && !want["general"] {
			out = append(out, ex)
		}
	}
	return out
}
