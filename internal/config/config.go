// Package config loads the translation engine's configuration from a
// viper-backed JSON file and derives the immutable translation profile the
// pipeline runs under.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// BackendKind identifies a translation backend implementation.
type BackendKind string

const (
	BackendLocalLLM       BackendKind = "local_llm"
	BackendCloudLLM       BackendKind = "cloud_llm"
	BackendGemini         BackendKind = "gemini"
	BackendDeepL          BackendKind = "deepl"
	BackendGoogle         BackendKind = "google"
	BackendLibreTranslate BackendKind = "libretranslate"
)

// BackendIdentity identifies and authenticates against one backend.
type BackendIdentity struct {
	Kind    BackendKind `json:"kind" mapstructure:"kind"`
	BaseURL string      `json:"base_url" mapstructure:"base_url"`
	Model   string      `json:"model" mapstructure:"model"`
	APIKey  string      `json:"api_key" mapstructure:"api_key"`
}

// FeatureFlags toggles optional pipeline behavior.
type FeatureFlags struct {
	ContextualPrompt bool `json:"enable_contextual_prompt" mapstructure:"enable_contextual_prompt"`
	FewShot          bool `json:"enable_fewshot" mapstructure:"enable_fewshot"`
	AutoGlossary     bool `json:"enable_auto_glossary" mapstructure:"enable_auto_glossary"`
	BatchMode        bool `json:"enable_batch_mode" mapstructure:"enable_batch_mode"`
}

// Config is the full set of recognized configuration options.
type Config struct {
	SourceLang string `json:"source_lang" mapstructure:"source_lang"`
	TargetLang string `json:"target_lang" mapstructure:"target_lang"`

	MaxParallelism int  `json:"max_parallelism" mapstructure:"max_parallelism"`
	SkipExisting   bool `json:"skip_existing" mapstructure:"skip_existing"`

	SRTBatchSize int `json:"srt_batch_size" mapstructure:"srt_batch_size"`
	ASSBatchSize int `json:"ass_batch_size" mapstructure:"ass_batch_size"`

	ContextWindowSize int `json:"context_window_size" mapstructure:"context_window_size"`
	NumCtx            int `json:"num_ctx" mapstructure:"num_ctx"`
	NumThread         int `json:"num_thread" mapstructure:"num_thread"`

	Features FeatureFlags    `json:"features" mapstructure:"features"`
	Backend  BackendIdentity `json:"backend" mapstructure:"backend"`

	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	TopP           float64 `json:"top_p" mapstructure:"top_p"`
	RepeatPenalty  float64 `json:"repeat_penalty" mapstructure:"repeat_penalty"`
	MaxOutputToken int     `json:"max_output_tokens" mapstructure:"max_output_tokens"`
	TokenBudget    int     `json:"token_budget" mapstructure:"token_budget"`
	BackendCtxSize int     `json:"backend_context_size" mapstructure:"backend_context_size"`

	CacheDBPath string `json:"cache_db_path" mapstructure:"cache_db_path"`
	GlossaryDir string `json:"glossary_dir" mapstructure:"glossary_dir"`
	LogLevel    string `json:"log_level" mapstructure:"log_level"`
}

var (
	configFileName = "config"
	instance       *Config
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SourceLang:        "auto",
		TargetLang:        "pt-BR",
		MaxParallelism:    1,
		SkipExisting:      true,
		SRTBatchSize:      6,
		ASSBatchSize:      4,
		ContextWindowSize: 2,
		NumCtx:            4096,
		NumThread:         4,
		Features: FeatureFlags{
			ContextualPrompt: true,
			FewShot:          true,
			AutoGlossary:     true,
			BatchMode:        true,
		},
		Backend: BackendIdentity{
			Kind:    BackendLocalLLM,
			BaseURL: "http://localhost:11434",
			Model:   "llama3",
		},
		Temperature:    0.3,
		TopP:           0.9,
		RepeatPenalty:  1.1,
		MaxOutputToken: 512,
		TokenBudget:    2048,
		BackendCtxSize: 4096,
		CacheDBPath:    "subtran.db",
		GlossaryDir:    "glossaries",
		LogLevel:       "info",
	}
}

// Load reads configuration from config.json (or config.{yaml,toml}) using
// viper, falling back to Default() when no file is found.
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/subtran")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			instance = Default()
			return instance, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	instance = cfg
	return instance, nil
}

// Save writes the configuration back to config.json.
func (c *Config) Save(path string) error {
	if path == "" {
		path = configFileName + ".json"
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	viper.Set("source_lang", c.SourceLang)
	viper.Set("target_lang", c.TargetLang)
	viper.Set("max_parallelism", c.MaxParallelism)
	viper.Set("skip_existing", c.SkipExisting)
	viper.Set("srt_batch_size", c.SRTBatchSize)
	viper.Set("ass_batch_size", c.ASSBatchSize)
	viper.Set("context_window_size", c.ContextWindowSize)
	viper.Set("num_ctx", c.NumCtx)
	viper.Set("num_thread", c.NumThread)
	viper.Set("features", c.Features)
	viper.Set("backend", c.Backend)
	viper.Set("temperature", c.Temperature)
	viper.Set("top_p", c.TopP)
	viper.Set("repeat_penalty", c.RepeatPenalty)
	viper.Set("max_output_tokens", c.MaxOutputToken)
	viper.Set("token_budget", c.TokenBudget)
	viper.Set("backend_context_size", c.BackendCtxSize)
	viper.Set("cache_db_path", c.CacheDBPath)
	viper.Set("glossary_dir", c.GlossaryDir)
	viper.Set("log_level", c.LogLevel)

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// clampParallelism keeps worker parallelism in the supported 1-2 range.
func clampParallelism(n int) int {
	if n < 1 {
		return 1
	}
	if n > 2 {
		return 2
	}
	return n
}

// Profile builds the immutable TranslationProfile used throughout the
// pipeline from this configuration.
func (c *Config) Profile() *Profile {
	return &Profile{
		Temperature:        c.Temperature,
		TopP:               c.TopP,
		RepeatPenalty:      c.RepeatPenalty,
		MaxOutputTokens:    c.MaxOutputToken,
		ContextWindowSize:  c.ContextWindowSize,
		SRTBatchSize:       c.SRTBatchSize,
		ASSBatchSize:       c.ASSBatchSize,
		TokenBudget:        c.TokenBudget,
		BackendContextSize: c.BackendCtxSize,
		MaxParallelism:     clampParallelism(c.MaxParallelism),
		Features:           c.Features,
	}
}

// Profile is the immutable configuration handed to the prompt builder,
// scheduler, and orchestrator.
type Profile struct {
	Temperature        float64
	TopP               float64
	RepeatPenalty      float64
	MaxOutputTokens    int
	ContextWindowSize  int
	SRTBatchSize       int
	ASSBatchSize       int
	TokenBudget        int
	BackendContextSize int
	MaxParallelism     int
	Features           FeatureFlags
}
