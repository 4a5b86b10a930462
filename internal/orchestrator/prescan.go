package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/subtran/subtran/internal/prompt"
)

// prescanMaxLines caps how much dialogue the name-extraction pass sees.
const prescanMaxLines = 80

// prescanNames asks the backend which proper names in the episode must be
// preserved, before any line is translated. Returns nil when the backend
// cannot answer; the pipeline continues without a prescan glossary.
func (o *Orchestrator) prescanNames(ctx context.Context, dialogue []string) map[string]string {
	if len(dialogue) == 0 {
		return nil
	}
	if len(dialogue) > prescanMaxLines {
		dialogue = dialogue[:prescanMaxLines]
	}

	req := &prompt.Request{
		SystemText: "You extract proper names from subtitles. Reply with a single JSON object " +
			"mapping each character or place name to the exact form that must appear in the " +
			"translation. Reply with {} if there are none. No other text.",
		UserText:   strings.Join(dialogue, "\n"),
		SourceLang: o.sourceLang,
		TargetLang: o.targetLang,
		Options:    prompt.Options{Temperature: 0, NumPredict: 256, KeepAlive: "30m"},
	}

	var raw string
	err := o.sched.Run(ctx, o.backend, func(ctx context.Context) error {
		var err error
		raw, err = o.backend.Translate(ctx, req)
		return err
	})
	if err != nil {
		o.logf("warning", fmt.Sprintf("glossary prescan failed: %v", err))
		return nil
	}
	terms := parsePrescanResponse(raw)
	if len(terms) == 0 {
		return nil
	}
	return terms
}

// parsePrescanResponse accepts a JSON object, falling back to line-based
// "key: value", "key -> value", and "key → value" forms.
func parsePrescanResponse(raw string) map[string]string {
	raw = strings.TrimSpace(raw)

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			var obj map[string]string
			if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err == nil {
				return trimTerms(obj)
			}
		}
	}

	out := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" {
			continue
		}
		for _, sep := range []string{"->", "→", ":"} {
			if idx := strings.Index(line, sep); idx > 0 {
				key := strings.Trim(strings.TrimSpace(line[:idx]), `"'`)
				val := strings.Trim(strings.TrimSpace(line[idx+len(sep):]), `",'`)
				if key != "" && val != "" {
					out[key] = val
				}
				break
			}
		}
	}
	return trimTerms(out)
}

func trimTerms(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" || len(k) > 60 || len(v) > 60 {
			continue
		}
		out[k] = v
	}
	return out
}
