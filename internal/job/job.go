// Package job holds the per-file mutable state of one translation run: the
// rolling context window, auto-glossary candidate tracking, and the stats
// bag. A Job is created when a file starts and discarded when it ends; it is
// never shared across files.
package job

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/subtran/subtran/internal/collab"
)

// Stats counts per-file outcomes, reported when the file finishes.
type Stats struct {
	DialogueLines          int
	SoundEffectLines       int
	MusicLines             int
	TechnicalLines         int
	UntranslatableLines    int
	CacheHits              int
	CacheMisses            int
	SuccessfulTranslations int
	ValidationRejections   int
	APIFailures            int
	SelfConsistencyRetries int
	BatchFallbacks         int
	EstimatedCostUSD       float64
}

// Job is the per-file state bag. Metadata and the glossary snapshot are
// read-only after creation; the context window and candidate map mutate as
// lines complete.
type Job struct {
	ID       string
	Metadata *collab.SeriesMetadata
	Glossary map[string]string

	contextWindow int

	mu         sync.Mutex
	context    []string
	candidates map[string]map[string]int

	Stats Stats
}

// reProperName matches the capitalized tokens eligible for auto-glossary
// tracking.
var reProperName = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)

// New creates the state for one file. glossary is the budgeted snapshot the
// prompts will carry; contextWindow is the profile's window size.
func New(meta *collab.SeriesMetadata, glossary map[string]string, contextWindow int) *Job {
	return &Job{
		ID:            uuid.NewString(),
		Metadata:      meta,
		Glossary:      glossary,
		contextWindow: contextWindow,
		candidates:    make(map[string]map[string]int),
	}
}

// AddContext appends one translated line to the rolling window. The window
// retains at most twice the configured size, trimmed from the front.
func (j *Job) AddContext(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.context = append(j.context, text)
	if limit := 2 * j.contextWindow; limit > 0 && len(j.context) > limit {
		j.context = j.context[len(j.context)-limit:]
	}
}

// RecentContext returns the last contextWindow translated lines, oldest
// first.
func (j *Job) RecentContext() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := j.contextWindow
	if n <= 0 || len(j.context) == 0 {
		return nil
	}
	if len(j.context) < n {
		n = len(j.context)
	}
	out := make([]string, n)
	copy(out, j.context[len(j.context)-n:])
	return out
}

// TrackAutoGlossary records capitalized tokens from the original that
// survived into the translation verbatim; these are candidate proper names
// the series glossary may want to pin down.
func (j *Job) TrackAutoGlossary(original, translated string) {
	matches := reProperName.FindAllString(original, -1)
	if len(matches) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, name := range matches {
		if !strings.Contains(translated, name) {
			continue
		}
		key := strings.ToLower(name)
		if j.candidates[key] == nil {
			j.candidates[key] = make(map[string]int)
		}
		j.candidates[key][name]++
	}
}

// SuggestedGlossary returns, for every candidate seen at least
// minOccurrences times, the most frequently observed target form.
func (j *Job) SuggestedGlossary(minOccurrences int) map[string]string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[string]string)
	for key, observed := range j.candidates {
		total := 0
		best := ""
		bestCount := 0
		for form, count := range observed {
			total += count
			if count > bestCount || (count == bestCount && form < best) {
				best, bestCount = form, count
			}
		}
		if total >= minOccurrences {
			out[key] = best
		}
	}
	return out
}
