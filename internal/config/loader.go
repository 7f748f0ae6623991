package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/talentlens/talentlens/internal/analysis"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":        {"whisper"},
	"vision":     {"remote"},
	"embeddings": {"openai", "ollama"},
	"sentiment":  {"openai", "anthropic", "ollama", "gemini", "mistral"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Unknown provider names warn rather than fail.
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("vision", cfg.Providers.Vision.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("sentiment", cfg.Providers.Sentiment.Name)

	// Provider availability warnings
	if cfg.Providers.ASR.Name == "" {
		slog.Warn("no ASR provider configured; batch analysis will fail without a transcriber")
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; indicator scoring falls back to keyword matching")
	}

	// Embeddings ↔ storage dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; defaulting to 768")
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; running on the in-memory store, data is lost on restart")
	}

	// Recording
	if cfg.Recording.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("recording.sample_rate %d must not be negative", cfg.Recording.SampleRate))
	}
	if cfg.Recording.FrameDivisor < 0 {
		errs = append(errs, fmt.Errorf("recording.frame_divisor %d must not be negative", cfg.Recording.FrameDivisor))
	}
	if cfg.Recording.SpeechAnalysisEvery < 0 {
		errs = append(errs, fmt.Errorf("recording.speech_analysis_every %d must not be negative", cfg.Recording.SpeechAnalysisEvery))
	}

	// Scoring weights, only when the operator set either side.
	if cfg.Scoring.AIWeight != 0 || cfg.Scoring.ManualWeight != 0 {
		w := analysis.Weights{AI: cfg.Scoring.AIWeight, Manual: cfg.Scoring.ManualWeight}
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scoring: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Weights returns the configured scoring weight split, or the default split
// when the config leaves both sides unset.
func (s ScoringConfig) Weights() analysis.Weights {
	if s.AIWeight == 0 && s.ManualWeight == 0 {
		return analysis.DefaultWeights
	}
	return analysis.Weights{AI: s.AIWeight, Manual: s.ManualWeight}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
