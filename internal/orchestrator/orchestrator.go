// Package orchestrator drives one subtitle file end-to-end: parse,
// classify, dedupe, cache, prompt, translate, validate, and re-emit. It is
// the only package that touches every other component, and it owns the
// policy decisions: when to retry with self-consistency, when to keep the
// original line, and when to give up on a backend for the rest of the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/subtran/subtran/internal/backend"
	"github.com/subtran/subtran/internal/cache"
	"github.com/subtran/subtran/internal/classifier"
	"github.com/subtran/subtran/internal/collab"
	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/glossary"
	"github.com/subtran/subtran/internal/job"
	"github.com/subtran/subtran/internal/prompt"
	"github.com/subtran/subtran/internal/scheduler"
	"github.com/subtran/subtran/internal/subtitle"
	"github.com/subtran/subtran/internal/validate"
)

// selfConsistencyThreshold triggers a hotter second attempt when a local
// LLM's first answer validates below it.
const selfConsistencyThreshold = 0.6

// glossaryViewBudget caps how many series terms a job snapshot carries.
const glossaryViewBudget = 30

// autoGlossaryMinOccurrences is how many times a candidate must be seen
// before the file-end merge accepts it.
const autoGlossaryMinOccurrences = 3

// Options wires an Orchestrator. Cache, Glossary, Backend, Scheduler, and
// Profile are required; the rest default sanely.
type Options struct {
	Cache     *cache.Cache
	Glossary  *glossary.Store
	Backend   backend.Translator
	Scheduler *scheduler.Scheduler
	Profile   *config.Profile
	Reporter  collab.ProgressReporter
	Metadata  collab.SeriesMetadataProvider
	Logger    zerolog.Logger

	SourceLang   string
	TargetLang   string
	SkipExisting bool

	// ExplanationHeuristic turns on the fragile "pick the first short
	// sentence out of a rambling reply" recovery. Off by default.
	ExplanationHeuristic bool
}

// Orchestrator translates subtitle files one at a time. It is safe to call
// TranslateFile from multiple goroutines; per-file state never crosses
// between calls.
type Orchestrator struct {
	cache    *cache.Cache
	gloss    *glossary.Store
	backend  backend.Translator
	sched    *scheduler.Scheduler
	profile  *config.Profile
	reporter collab.ProgressReporter
	metadata collab.SeriesMetadataProvider
	log      zerolog.Logger

	sourceLang           string
	targetLang           string
	skipExisting         bool
	explanationHeuristic bool

	cls     *classifier.Classifier
	builder *prompt.Builder
	est     *prompt.Estimator

	// backendDown latches when the backend reports quota exhaustion; the
	// rest of the run keeps originals instead of hammering the API.
	backendDown atomic.Bool
}

// New builds an Orchestrator from Options.
func New(opts Options) *Orchestrator {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = collab.NoopReporter{}
	}
	return &Orchestrator{
		cache:                opts.Cache,
		gloss:                opts.Glossary,
		backend:              opts.Backend,
		sched:                opts.Scheduler,
		profile:              opts.Profile,
		reporter:             reporter,
		metadata:             opts.Metadata,
		log:                  opts.Logger,
		sourceLang:           opts.SourceLang,
		targetLang:           opts.TargetLang,
		skipExisting:         opts.SkipExisting,
		explanationHeuristic: opts.ExplanationHeuristic,
		cls:                  classifier.New(),
		builder:              prompt.NewBuilder(opts.Backend.Kind(), opts.Profile),
		est:                  prompt.NewEstimator(),
	}
}

func (o *Orchestrator) logf(level, msg string) {
	switch level {
	case "debug":
		o.log.Debug().Msg(msg)
		o.reporter.Log(collab.LogDebug, msg)
	case "warning":
		o.log.Warn().Msg(msg)
		o.reporter.Log(collab.LogWarning, msg)
	case "error":
		o.log.Error().Msg(msg)
		o.reporter.Log(collab.LogError, msg)
	default:
		o.log.Info().Msg(msg)
		o.reporter.Log(collab.LogInfo, msg)
	}
}

// OutputPath derives the translated file's name: <stem>.<target>.<ext>,
// with .sub inputs landing as .ass.
func OutputPath(path, targetLang string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if strings.EqualFold(ext, ".sub") {
		ext = ".ass"
	}
	return stem + "." + targetLang + ext
}

// uniqueLine is one deduplicated dialogue line plus the cue neighborhood of
// its first occurrence (used for the context-aware cache key).
type uniqueLine struct {
	text       string
	prev, next string
	result     string
	translated bool
	rejected   bool
	count      int
}

// TranslateFile runs the full pipeline for one file. A skipped file (output
// already present) returns empty stats and no error. Cancellation aborts
// without writing the output file.
func (o *Orchestrator) TranslateFile(ctx context.Context, path string, seriesID int) (*job.Stats, error) {
	outPath := OutputPath(path, o.targetLang)
	if o.skipExisting {
		if _, err := os.Stat(outPath); err == nil {
			o.logf("info", fmt.Sprintf("skipping %s: output exists", filepath.Base(path)))
			return &job.Stats{}, nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := subtitle.Extract(path, string(content))
	if err != nil {
		return nil, err
	}
	o.reporter.Progress(0)

	meta, doc := o.loadSeries(ctx, seriesID)
	jb := job.New(meta, o.gloss.BudgetedView(doc, glossaryViewBudget), o.profile.ContextWindowSize)

	// Classification pass. finals holds the emitted text per entry;
	// dialogue slots are filled after translation.
	n := len(f.Entries)
	finals := make([]string, n)
	dialogueIdx := make([]int, 0, n)
	var dialogueTexts []string
	for i, e := range f.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		class, processed := o.cls.Classify(e.PlainText)
		switch class {
		case classifier.Dialogue:
			jb.Stats.DialogueLines++
			dialogueIdx = append(dialogueIdx, i)
			dialogueTexts = append(dialogueTexts, processed)
			finals[i] = processed
		case classifier.SoundEffect:
			jb.Stats.SoundEffectLines++
			finals[i] = processed
		case classifier.MusicLyrics:
			jb.Stats.MusicLines++
			finals[i] = processed
		case classifier.TechnicalTag:
			jb.Stats.TechnicalLines++
			finals[i] = processed
		default:
			jb.Stats.UntranslatableLines++
			finals[i] = processed
		}
	}

	// Optional pre-scan before the first line of a never-scanned series.
	if doc == nil || doc.EpisodesScanned == 0 {
		if o.profile.Features.AutoGlossary && seriesID > 0 && o.llmBackend() {
			if terms := o.prescanNames(ctx, dialogueTexts); len(terms) > 0 {
				doc = glossary.MergePrescan(doc, terms)
				if err := o.gloss.Save(seriesID, doc); err != nil {
					o.logf("warning", fmt.Sprintf("saving prescan glossary: %v", err))
				}
				jb = job.New(meta, o.gloss.BudgetedView(doc, glossaryViewBudget), o.profile.ContextWindowSize)
				o.logf("info", fmt.Sprintf("prescan added %d glossary terms", len(terms)))
			}
		}
	}

	// Dedupe dialogue, remembering each original position.
	uniques, positions := dedupe(f, dialogueIdx)
	jb.Stats.EstimatedCostUSD = o.est.EstimateCostUSD(dialogueTexts, o.backendModel())

	if err := o.translateUniques(ctx, jb, f.Format, uniques); err != nil {
		return nil, err
	}

	// Reapply results through the index map. A unique line that failed
	// keeps its original text; its duplicates count as cache hits only
	// when the translation actually happened.
	for entryIdx, u := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch {
		case u.translated:
			finals[entryIdx] = u.result
			jb.Stats.SuccessfulTranslations++
		case u.rejected:
			// counted once per unique in ValidationRejections
		default:
			jb.Stats.APIFailures++
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := subtitle.Emit(f, finals)
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", outPath, err)
	}
	o.reporter.Progress(100)

	report := validate.CheckFile(o.translatedDialogue(positions), o.targetLang)
	o.logf("info", fmt.Sprintf("%s done: quality %d/100, %d translated, %d cache hits, %d failures",
		filepath.Base(path), report.Score, jb.Stats.SuccessfulTranslations, jb.Stats.CacheHits, jb.Stats.APIFailures))
	for _, advice := range report.Advice {
		o.logf("warning", advice)
	}

	// Auto-glossary merge happens at file end, off the per-line path.
	if seriesID > 0 && o.profile.Features.AutoGlossary {
		if suggested := jb.SuggestedGlossary(autoGlossaryMinOccurrences); len(suggested) > 0 {
			doc, err := o.gloss.Load(seriesID)
			if err != nil {
				o.logf("warning", fmt.Sprintf("reloading glossary for merge: %v", err))
				doc = nil
			}
			doc = glossary.MergeAuto(doc, suggested, autoGlossaryMinOccurrences)
			if err := o.gloss.Save(seriesID, doc); err != nil {
				o.logf("warning", fmt.Sprintf("saving auto glossary: %v", err))
			}
		}
	}

	return &jb.Stats, nil
}

func (o *Orchestrator) llmBackend() bool {
	switch o.backend.Kind() {
	case config.BackendLocalLLM, config.BackendCloudLLM, config.BackendGemini:
		return true
	}
	return false
}

func (o *Orchestrator) backendModel() string {
	// Returns the backend kind, not a model name, so cost estimation
	// prices every backend kind at the default bucket.
	return string(o.backend.Kind())
}

// loadSeries fetches metadata and the glossary document, tolerating both
// being unavailable. A corrupt glossary loads as empty with a warning.
func (o *Orchestrator) loadSeries(ctx context.Context, seriesID int) (*collab.SeriesMetadata, *glossary.Document) {
	if seriesID <= 0 {
		return nil, nil
	}
	var meta *collab.SeriesMetadata
	if o.metadata != nil {
		m, err := o.metadata.GetSeriesMetadata(ctx, seriesID)
		if err != nil {
			o.logf("debug", fmt.Sprintf("series %d metadata unavailable: %v", seriesID, err))
		} else {
			meta = m
		}
	}
	doc, err := o.gloss.Load(seriesID)
	if err != nil {
		o.logf("warning", fmt.Sprintf("glossary for series %d unreadable, continuing without: %v", seriesID, err))
		doc = nil
	}
	return meta, doc
}

// dedupe collapses repeated dialogue strings into uniqueLine records and
// returns a map from entry index to its unique record.
func dedupe(f *subtitle.File, dialogueIdx []int) ([]*uniqueLine, map[int]*uniqueLine) {
	byText := make(map[string]*uniqueLine)
	var uniques []*uniqueLine
	positions := make(map[int]*uniqueLine, len(dialogueIdx))

	for _, entryIdx := range dialogueIdx {
		text := strings.TrimSpace(f.Entries[entryIdx].PlainText)
		u, ok := byText[text]
		if !ok {
			u = &uniqueLine{text: text}
			if entryIdx > 0 {
				u.prev = f.Entries[entryIdx-1].PlainText
			}
			if entryIdx+1 < len(f.Entries) {
				u.next = f.Entries[entryIdx+1].PlainText
			}
			byText[text] = u
			uniques = append(uniques, u)
		}
		u.count++
		positions[entryIdx] = u
	}
	return uniques, positions
}

// translateUniques fills every unique line's result, via cache, batches, or
// single calls.
func (o *Orchestrator) translateUniques(ctx context.Context, jb *job.Job, format subtitle.Format, uniques []*uniqueLine) error {
	var pending []*uniqueLine
	for _, u := range uniques {
		if err := ctx.Err(); err != nil {
			return err
		}
		if translated, ok := o.cache.Get(u.text, o.sourceLang, o.targetLang, u.prev, u.next); ok {
			u.result, u.translated = translated, true
			jb.Stats.CacheHits += u.count
			jb.AddContext(translated)
			continue
		}
		jb.Stats.CacheMisses++
		pending = append(pending, u)
	}

	done := 0
	total := len(pending)
	progress := func() {
		done++
		if total > 0 {
			o.reporter.Progress(done * 100 / total)
		}
	}

	batcher, canBatch := o.backend.(backend.BatchTranslator)

	for start := 0; start < len(pending); {
		if err := ctx.Err(); err != nil {
			return err
		}
		size := 0
		if canBatch {
			// Re-read per chunk so the circuit breaker can flip
			// mid-file.
			size = o.sched.BatchSize(format, o.profile)
		}
		if size <= 1 {
			if err := o.translateOne(ctx, jb, pending[start]); err != nil {
				return err
			}
			progress()
			start++
			continue
		}

		end := start + size
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]
		if len(chunk) == 1 {
			if err := o.translateOne(ctx, jb, chunk[0]); err != nil {
				return err
			}
			progress()
			start = end
			continue
		}

		missing, err := o.translateBatch(ctx, jb, batcher, chunk)
		if err != nil {
			return err
		}
		// Batch desync or partial: fall back line-by-line, never
		// dropping a line.
		for _, u := range missing {
			if err := o.translateOne(ctx, jb, u); err != nil {
				return err
			}
		}
		for range chunk {
			progress()
		}
		start = end
	}
	// Duplicates beyond the first occurrence of a translated line are
	// satisfied by the dedupe map, which is a cache in all but name.
	for _, u := range pending {
		if u.translated {
			jb.Stats.CacheHits += u.count - 1
		}
	}
	return nil
}

// translateBatch tries one numbered batch call; returns the lines still
// needing individual treatment.
func (o *Orchestrator) translateBatch(ctx context.Context, jb *job.Job, batcher backend.BatchTranslator, chunk []*uniqueLine) ([]*uniqueLine, error) {
	if o.backendDown.Load() {
		return nil, nil
	}

	texts := make([]string, len(chunk))
	for i, u := range chunk {
		texts[i] = u.text
	}
	req := o.builder.BuildBatch(prompt.Input{
		Glossary:   jb.Glossary,
		Metadata:   jb.Metadata,
		Context:    jb.RecentContext(),
		SourceLang: o.sourceLang,
		TargetLang: o.targetLang,
	}, texts)

	var results []string
	err := o.sched.Run(ctx, o.backend, func(ctx context.Context) error {
		var err error
		results, err = batcher.TranslateBatch(ctx, req)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.sched.ReportBatch(false)
		jb.Stats.BatchFallbacks++
		if !errors.Is(err, backend.ErrBatchDesync) {
			o.noteBackendError(err)
		}
		return chunk, nil
	}
	o.sched.ReportBatch(true)

	var missing []*uniqueLine
	for i, u := range chunk {
		raw := ""
		if i < len(results) {
			raw = results[i]
		}
		if raw == "" {
			missing = append(missing, u)
			continue
		}
		if !o.finishLine(jb, u, raw) {
			missing = append(missing, u)
		}
	}
	return missing, nil
}

// translateOne runs the full single-line path: prompt, call, clean, apply
// glossary, validate (with self-consistency), cache.
func (o *Orchestrator) translateOne(ctx context.Context, jb *job.Job, u *uniqueLine) error {
	if o.backendDown.Load() {
		return nil
	}

	in := prompt.Input{
		Text:       u.text,
		Glossary:   jb.Glossary,
		Metadata:   jb.Metadata,
		Context:    jb.RecentContext(),
		SourceLang: o.sourceLang,
		TargetLang: o.targetLang,
	}
	raw, err := o.call(ctx, o.builder.Build(in))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.noteBackendError(err)
		return nil
	}

	candidate := o.postprocess(jb, raw)
	result := validate.CheckLine(u.text, candidate)

	// A shaky local-LLM answer gets one hotter second opinion; a much
	// shorter second answer usually means the first rambled.
	if result.Confidence < selfConsistencyThreshold && o.backend.Kind() == config.BackendLocalLLM {
		jb.Stats.SelfConsistencyRetries++
		req := o.builder.Build(in)
		req.Options.Temperature += 0.3
		if req.Options.Temperature > 0.7 {
			req.Options.Temperature = 0.7
		}
		if second, err := o.call(ctx, req); err == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			secondCandidate := o.postprocess(jb, second)
			if secondCandidate != "" && float64(len(secondCandidate)) <= 0.8*float64(len(candidate)) {
				candidate = secondCandidate
			}
			result = validate.CheckLine(u.text, candidate)
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if !result.Valid {
		jb.Stats.ValidationRejections++
		u.rejected = true
		o.logf("debug", fmt.Sprintf("rejected %q: %s", u.text, strings.Join(result.Issues, "; ")))
		return nil
	}

	o.finishValidated(jb, u, candidate)
	return nil
}

// finishLine post-processes and validates one batch slot. Returns false
// when the slot needs the single-line path instead.
func (o *Orchestrator) finishLine(jb *job.Job, u *uniqueLine, raw string) bool {
	candidate := o.postprocess(jb, raw)
	result := validate.CheckLine(u.text, candidate)
	if !result.Valid {
		return false
	}
	o.finishValidated(jb, u, candidate)
	return true
}

func (o *Orchestrator) finishValidated(jb *job.Job, u *uniqueLine, candidate string) {
	u.result, u.translated = candidate, true
	if err := o.cache.Set(u.text, candidate, o.sourceLang, o.targetLang, string(o.backend.Kind()), u.prev, u.next); err != nil {
		o.logf("debug", fmt.Sprintf("cache refused %q: %v", u.text, err))
	}
	jb.AddContext(candidate)
	jb.TrackAutoGlossary(u.text, candidate)
}

func (o *Orchestrator) postprocess(jb *job.Job, raw string) string {
	cleaned := cleanResponse(raw)
	if o.explanationHeuristic {
		cleaned = extractFromExplanation(cleaned)
	}
	return glossary.ApplyToText(cleaned, jb.Glossary)
}

func (o *Orchestrator) call(ctx context.Context, req *prompt.Request) (string, error) {
	var out string
	err := o.sched.Run(ctx, o.backend, func(ctx context.Context) error {
		var err error
		out, err = o.backend.Translate(ctx, req)
		return err
	})
	return out, err
}

// noteBackendError records a failed call. Quota exhaustion latches the
// backend off for the remainder of the run.
func (o *Orchestrator) noteBackendError(err error) {
	if backend.KindOf(err) == backend.ErrQuota {
		if o.backendDown.CompareAndSwap(false, true) {
			o.logf("error", fmt.Sprintf("backend quota exhausted, keeping remaining lines untranslated: %v", err))
		}
		return
	}
	o.logf("warning", fmt.Sprintf("translation call failed: %v", err))
}

// translatedDialogue collects the successfully translated lines for the
// per-file quality report.
func (o *Orchestrator) translatedDialogue(positions map[int]*uniqueLine) []string {
	seen := make(map[*uniqueLine]bool)
	var out []string
	for _, u := range positions {
		if u.translated && !seen[u] {
			seen[u] = true
			out = append(out, u.result)
		}
	}
	return out
}
