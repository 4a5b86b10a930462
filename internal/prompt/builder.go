// Package prompt assembles backend-specific translation prompts under a
// strict token budget. Sections are added in priority order (system rule,
// glossary, series metadata, rolling context, few-shot examples, user text)
// and trimmed in reverse priority when the estimate exceeds the budget; the
// glossary and the user text are never dropped.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/subtran/subtran/internal/collab"
	"github.com/subtran/subtran/internal/config"
)

// Options carries the sampling and runtime knobs forwarded to a backend.
type Options struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	NumPredict    int
	NumCtx        int
	NumThread     int
	Stop          []string
	KeepAlive     string
}

// Request is one assembled prompt. LLM backends consume SystemText/UserText;
// DeepL consumes Text plus GlossaryEntries; Google/LibreTranslate consume
// Text alone. TargetLang is always set.
type Request struct {
	SystemText      string
	UserText        string
	Text            string
	GlossaryEntries map[string]string
	SourceLang      string
	TargetLang      string
	Options         Options
	BatchSize       int
}

// Input is everything the builder may draw on for one line (or batch).
type Input struct {
	Text       string
	Glossary   map[string]string
	Metadata   *collab.SeriesMetadata
	Context    []string
	SourceLang string
	TargetLang string
}

// Builder assembles prompts for one backend kind under one profile.
type Builder struct {
	kind    config.BackendKind
	profile *config.Profile
	est     *Estimator
}

// NewBuilder returns a Builder for the given backend kind.
func NewBuilder(kind config.BackendKind, profile *config.Profile) *Builder {
	return &Builder{kind: kind, profile: profile, est: NewEstimator()}
}

// paid backends get the lean variant: short system prompt, few glossary
// terms, no few-shot, at most two context lines.
func (b *Builder) paid() bool {
	return b.kind == config.BackendCloudLLM || b.kind == config.BackendGemini
}

const contextMarker = "Previous context"

// stopSequences suppress the most common echo patterns in LLM output.
func stopSequences(batch bool) []string {
	stops := []string{"Note:", "English:", contextMarker}
	if !batch {
		stops = append([]string{"\n"}, stops...)
	}
	return stops
}

func (b *Builder) options(batch bool) Options {
	return Options{
		Temperature:   b.profile.Temperature,
		TopP:          b.profile.TopP,
		RepeatPenalty: b.profile.RepeatPenalty,
		NumPredict:    b.profile.MaxOutputTokens,
		NumCtx:        b.profile.BackendContextSize,
		Stop:          stopSequences(batch),
		KeepAlive:     "30m",
	}
}

// Build assembles a single-line prompt for the builder's backend kind.
func (b *Builder) Build(in Input) *Request {
	switch b.kind {
	case config.BackendDeepL:
		return b.buildDeepL(in)
	case config.BackendGoogle, config.BackendLibreTranslate:
		return b.buildPlainMT(in)
	default:
		return b.buildLLM(in)
	}
}

func (b *Builder) buildDeepL(in Input) *Request {
	text := in.Text
	if b.profile.Features.ContextualPrompt && len(in.Context) > 0 {
		recent := in.Context
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		text = "[Context: " + strings.Join(recent, " // ") + "] " + text
	}
	entries := capGlossary(in.Glossary, 50)
	return &Request{
		Text:            text,
		GlossaryEntries: entries,
		SourceLang:      in.SourceLang,
		TargetLang:      in.TargetLang,
		Options:         b.options(false),
	}
}

func (b *Builder) buildPlainMT(in Input) *Request {
	text := in.Text
	if hints := capGlossary(in.Glossary, 10); len(hints) > 0 {
		keys := sortedKeys(hints)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+hints[k])
		}
		text = "[Keep: " + strings.Join(parts, ", ") + "] " + text
	}
	return &Request{
		Text:       text,
		SourceLang: in.SourceLang,
		TargetLang: in.TargetLang,
		Options:    b.options(false),
	}
}

func (b *Builder) buildLLM(in Input) *Request {
	system, user := b.assemble(in, nil)
	return &Request{
		SystemText: system,
		UserText:   user,
		SourceLang: in.SourceLang,
		TargetLang: in.TargetLang,
		Options:    b.options(false),
	}
}

// BuildBatch assembles a numbered multi-line prompt for LLM backends. Each
// line appears as "N│ text" and the model is instructed to answer with
// exactly the same numbered format.
func (b *Builder) BuildBatch(in Input, texts []string) *Request {
	system, user := b.assemble(in, texts)
	req := &Request{
		SystemText: system,
		UserText:   user,
		SourceLang: in.SourceLang,
		TargetLang: in.TargetLang,
		Options:    b.options(true),
		BatchSize:  len(texts),
	}
	return req
}

// assemble builds the system and user text under the token budget. texts is
// nil for single-line prompts.
func (b *Builder) assemble(in Input, texts []string) (system, user string) {
	rule := b.systemRule(in.TargetLang)

	glossarySection := b.glossarySection(in.Glossary)
	metaSection := b.metadataSection(in.Metadata)
	contextSection := b.contextSection(in.Context)
	fewshotSection := b.fewshotSection(in)

	if texts != nil {
		user = batchBlock(texts)
		rule += fmt.Sprintf(
			"\nYou will receive %d numbered lines. Reply with exactly %d lines, each in the form \"N│ translation\", same numbers, same order, nothing else.",
			len(texts), len(texts))
	} else {
		user = in.Text
	}

	// Trim in reverse priority until the estimate fits: few-shot first,
	// then context, then metadata. The glossary and the user text are
	// never dropped.
	sections := []*string{&fewshotSection, &contextSection, &metaSection}
	for _, sec := range sections {
		if b.withinBudget(rule, glossarySection, metaSection, contextSection, fewshotSection, user) {
			break
		}
		*sec = ""
	}

	var sb strings.Builder
	sb.WriteString(rule)
	for _, s := range []string{glossarySection, metaSection, contextSection, fewshotSection} {
		if s != "" {
			sb.WriteString("\n\n")
			sb.WriteString(s)
		}
	}
	return sb.String(), user
}

func (b *Builder) withinBudget(parts ...string) bool {
	if b.profile.TokenBudget <= 0 {
		return true
	}
	total := 0
	for _, p := range parts {
		total += b.est.EstimateTokens(p)
	}
	return total <= b.profile.TokenBudget
}

func (b *Builder) systemRule(targetLang string) string {
	if b.paid() {
		return fmt.Sprintf("Translate to %s. Output only the translation.", targetLang)
	}
	return fmt.Sprintf(
		"You are a professional subtitle translator. Translate the user's line into %s. "+
			"Keep it natural, colloquial, and as short as the original allows. "+
			"Preserve names and terms listed in the glossary exactly. "+
			"Output only the translated line, with no quotes, notes, or explanations.",
		targetLang)
}

func (b *Builder) glossarySection(glossary map[string]string) string {
	max := 0
	if b.paid() {
		max = 10
	}
	entries := capGlossary(glossary, max)
	if len(entries) == 0 {
		return ""
	}
	keys := sortedKeys(entries)
	var sb strings.Builder
	sb.WriteString("Glossary (use these exact renderings):")
	for _, k := range keys {
		sb.WriteString("\n- ")
		sb.WriteString(k)
		sb.WriteString(" -> ")
		sb.WriteString(entries[k])
	}
	return sb.String()
}

func (b *Builder) metadataSection(meta *collab.SeriesMetadata) string {
	if meta == nil || meta.Title == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Series: ")
	sb.WriteString(meta.Title)
	if meta.Kind != "" {
		sb.WriteString(" (")
		sb.WriteString(meta.Kind)
		sb.WriteString(")")
	}
	if len(meta.Genres) > 0 {
		sb.WriteString("\nGenres: ")
		sb.WriteString(strings.Join(meta.Genres, ", "))
	}
	if len(meta.Characters) > 0 {
		chars := meta.Characters
		if len(chars) > 10 {
			chars = chars[:10]
		}
		sb.WriteString("\nCharacters: ")
		sb.WriteString(strings.Join(chars, ", "))
	}
	return sb.String()
}

func (b *Builder) contextSection(context []string) string {
	if !b.profile.Features.ContextualPrompt || len(context) == 0 {
		return ""
	}
	limit := b.profile.ContextWindowSize
	if b.paid() && limit > 2 {
		limit = 2
	}
	if limit <= 0 {
		return ""
	}
	if len(context) > limit {
		context = context[len(context)-limit:]
	}
	var sb strings.Builder
	sb.WriteString(contextMarker)
	sb.WriteString(" (read only, do NOT translate):")
	for _, line := range context {
		sb.WriteString("\n> ")
		sb.WriteString(line)
	}
	return sb.String()
}

func (b *Builder) fewshotSection(in Input) string {
	if b.paid() || !b.profile.Features.FewShot {
		return ""
	}
	if !fewshotSupported(in.SourceLang, in.TargetLang) {
		return ""
	}
	var genres []string
	if in.Metadata != nil {
		genres = in.Metadata.Genres
	}
	examples := matchExamples(genres, 3)
	if len(examples) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Examples:")
	for _, ex := range examples {
		sb.WriteString("\nEN: ")
		sb.WriteString(ex.Source)
		sb.WriteString("\nPT: ")
		sb.WriteString(ex.Target)
	}
	return sb.String()
}

// batchBlock renders texts as "1│ ..." / "2│ ..." lines.
func batchBlock(texts []string) string {
	var sb strings.Builder
	for i, t := range texts {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d│ %s", i+1, t)
	}
	return sb.String()
}

// capGlossary returns up to max entries (all of them when max <= 0),
// preferring lexicographically smaller keys for determinism.
func capGlossary(glossary map[string]string, max int) map[string]string {
	if len(glossary) == 0 {
		return nil
	}
	if max <= 0 || len(glossary) <= max {
		out := make(map[string]string, len(glossary))
		for k, v := range glossary {
			out[k] = v
		}
		return out
	}
	keys := sortedKeys(glossary)
	out := make(map[string]string, max)
	for _, k := range keys[:max] {
		out[k] = glossary[k]
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
