// Command subtran is the thin CLI driver around the translation engine: it
// loads configuration, opens the shared cache and glossary store, builds the
// configured backend, and runs the orchestrator over every subtitle file in
// the given path. All correctness lives in the internal packages; this file
// only wires them together.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/subtran/subtran/internal/backend"
	"github.com/subtran/subtran/internal/cache"
	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/glossary"
	"github.com/subtran/subtran/internal/orchestrator"
	"github.com/subtran/subtran/internal/scheduler"
	"github.com/subtran/subtran/pkg/logging"
)

const (
	exitOK          = 0
	exitInvalidArgs = 2
	exitBackendDown = 3
	exitCacheError  = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		targetLang string
		sourceLang string
		backendStr string
		model      string
		baseURL    string
		apiKey     string
		seriesID   int
	)

	rootCmd := &cobra.Command{
		Use:           "subtran <file-or-directory>",
		Short:         "Batch subtitle translation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Flags().StringVar(&targetLang, "target", "", "target language code (default from config)")
	rootCmd.Flags().StringVar(&sourceLang, "source", "", "source language code or auto")
	rootCmd.Flags().StringVar(&backendStr, "backend", "", "backend kind: local_llm, cloud_llm, gemini, deepl, google, libretranslate")
	rootCmd.Flags().StringVar(&model, "model", "", "model name for LLM backends")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "backend base URL")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "backend API key")
	rootCmd.Flags().IntVar(&seriesID, "series", 0, "series id for glossary/metadata lookup")

	exit := exitOK
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			exit = exitInvalidArgs
			return err
		}
		if targetLang != "" {
			cfg.TargetLang = targetLang
		}
		if sourceLang != "" {
			cfg.SourceLang = sourceLang
		}
		if backendStr != "" {
			cfg.Backend.Kind = config.BackendKind(backendStr)
		}
		if model != "" {
			cfg.Backend.Model = model
		}
		if baseURL != "" {
			cfg.Backend.BaseURL = baseURL
		}
		if apiKey != "" {
			cfg.Backend.APIKey = apiKey
		}

		files, err := collectSubtitleFiles(args[0], cfg.TargetLang)
		if err != nil {
			exit = exitInvalidArgs
			return err
		}
		if len(files) == 0 {
			return errors.New("no subtitle files found")
		}

		exit = translateAll(cfg, files, seriesID)
		if exit != exitOK {
			return fmt.Errorf("finished with errors")
		}
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if exit == exitOK {
			exit = exitInvalidArgs
		}
	}
	return exit
}

// collectSubtitleFiles expands a file or directory argument into the list
// of .srt/.ass/.ssa files to process, skipping files that already look like this
// run's output.
func collectSubtitleFiles(path, targetLang string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	outSuffix := "." + targetLang
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".srt" && ext != ".ass" && ext != ".ssa" {
			return nil
		}
		stem := strings.TrimSuffix(p, filepath.Ext(p))
		if strings.HasSuffix(stem, outSuffix) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func translateAll(cfg *config.Config, files []string, seriesID int) int {
	log := logging.New(cfg.LogLevel)
	profile := cfg.Profile()

	c, err := cache.Open(cfg.CacheDBPath, installedRAMGiB())
	if err != nil {
		log.Error().Err(err).Msg("opening translation cache")
		return exitCacheError
	}
	defer c.Close()

	be, err := backend.New(cfg.Backend, profile, func(msg string) { log.Info().Msg(msg) })
	if err != nil {
		log.Error().Err(err).Msg("building backend")
		return exitInvalidArgs
	}

	sched := scheduler.New(profile.MaxParallelism)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.EnsureWarm(ctx, be); err != nil {
		log.Error().Err(err).Msg("backend unreachable")
		return exitBackendDown
	}

	orch := orchestrator.New(orchestrator.Options{
		Cache:        c,
		Glossary:     glossary.New(cfg.GlossaryDir),
		Backend:      be,
		Scheduler:    sched,
		Profile:      profile,
		Reporter:     logging.Reporter{Logger: log},
		Logger:       log,
		SourceLang:   cfg.SourceLang,
		TargetLang:   cfg.TargetLang,
		SkipExisting: cfg.SkipExisting,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(profile.MaxParallelism)
	var failures atomic.Int64
	for _, file := range files {
		file := file
		g.Go(func() error {
			stats, err := orch.TranslateFile(ctx, file, seriesID)
			if err != nil {
				log.Error().Err(err).Str("file", file).Msg("file failed")
				failures.Add(1)
				return nil // keep going; per-file failures are not fatal
			}
			log.Info().
				Str("file", filepath.Base(file)).
				Int("translated", stats.SuccessfulTranslations).
				Int("cache_hits", stats.CacheHits).
				Int("failures", stats.APIFailures).
				Msg("file done")
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		log.Warn().Msg("interrupted")
	}
	if failures.Load() > 0 {
		return exitBackendDown
	}
	return exitOK
}

// installedRAMGiB reads total memory from the OS for cache sizing, falling
// back to a small bucket when it cannot tell.
func installedRAMGiB() float64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 4
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				var kb float64
				fmt.Sscanf(fields[1], "%f", &kb)
				return kb / (1024 * 1024)
			}
		}
	}
	return 4
}
