// Command talentlens is the main entry point for the TalentLens interview
// analysis server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/internal/batch"
	"github.com/talentlens/talentlens/internal/config"
	"github.com/talentlens/talentlens/internal/observe"
	"github.com/talentlens/talentlens/internal/server"
	"github.com/talentlens/talentlens/internal/session"
	"github.com/talentlens/talentlens/internal/store"
	"github.com/talentlens/talentlens/internal/store/postgres"
	"github.com/talentlens/talentlens/pkg/provider/asr"
	"github.com/talentlens/talentlens/pkg/provider/asr/whisper"
	"github.com/talentlens/talentlens/pkg/provider/embed"
	ollamaembed "github.com/talentlens/talentlens/pkg/provider/embed/ollama"
	oaembed "github.com/talentlens/talentlens/pkg/provider/embed/openai"
	"github.com/talentlens/talentlens/pkg/provider/sentiment"
	"github.com/talentlens/talentlens/pkg/provider/sentiment/llmsent"
	"github.com/talentlens/talentlens/pkg/provider/vision"
	visionremote "github.com/talentlens/talentlens/pkg/provider/vision/remote"
	"github.com/talentlens/talentlens/pkg/provider/voice/dsp"
)

// defaultEmbeddingDimensions matches nomic-embed-text, the recommended local
// embeddings model.
const defaultEmbeddingDimensions = 768

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "talentlens: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "talentlens: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("talentlens starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics provider; the prometheus bridge is scraped via /metrics.
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise store", "err", err)
		return 1
	}
	defer closeStore()

	// Persist the configured weight split when it differs from the stored one,
	// so the settings API and the config file agree at startup.
	if w := cfg.Scoring.Weights(); w != analysis.DefaultWeights {
		if err := st.SetScoringWeights(ctx, w); err != nil {
			slog.Warn("could not persist configured scoring weights", "err", err)
		}
	}

	coordinator := session.NewCoordinator(session.Config{
		Vision:              providers.Vision,
		Voice:               dsp.New(cfg.Recording.SampleRate),
		Storage:             st,
		RecordingDir:        cfg.Recording.Dir,
		SampleRate:          cfg.Recording.SampleRate,
		FrameDivisor:        cfg.Recording.FrameDivisor,
		SpeechAnalysisEvery: cfg.Recording.SpeechAnalysisEvery,
	})

	engine := batch.NewEngine(batch.Config{
		Store:       st,
		Transcriber: providers.ASR,
		Sentiment:   providers.Sentiment,
		Scorer:      analysis.NewScorer(providers.Embeddings, logger),
		Embedder:    providers.Embeddings,
	})

	srv := server.New(server.Config{
		Addr:        listenAddr(cfg),
		CertFile:    certFile(cfg),
		KeyFile:     keyFile(cfg),
		Store:       st,
		Coordinator: coordinator,
		Engine:      engine,
	})

	printStartupSummary(cfg)
	slog.Info("server ready, press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured and the system runs its documented fallback.
type Providers struct {
	ASR        asr.Transcriber
	Vision     vision.Classifier
	Embeddings embed.Provider
	Sentiment  sentiment.Analyzer
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── Vision ────────────────────────────────────────────────────────────────

	reg.RegisterVision("remote", func(entry config.ProviderEntry) (vision.Classifier, error) {
		return visionremote.New(entry.BaseURL)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embed.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embed.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// ── Sentiment ─────────────────────────────────────────────────────────────
	// All any-llm backed providers share the same pattern: optional APIKey +
	// optional BaseURL.

	for _, providerName := range []string{"openai", "anthropic", "gemini", "mistral", "ollama"} {
		reg.RegisterSentiment(providerName, func(entry config.ProviderEntry) (sentiment.Analyzer, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return llmsent.New(providerName, entry.Model, opts...)
		})
	}
}

// buildProviders instantiates all providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	if name := cfg.Providers.ASR.Name; name != "" {
		p, err := reg.CreateASR(cfg.Providers.ASR)
		if err != nil {
			return nil, fmt.Errorf("create asr provider %q: %w", name, err)
		}
		ps.ASR = p
		slog.Info("provider created", "kind", "asr", "name", name)
	}

	if name := cfg.Providers.Vision.Name; name != "" {
		p, err := reg.CreateVision(cfg.Providers.Vision)
		if err != nil {
			return nil, fmt.Errorf("create vision provider %q: %w", name, err)
		}
		ps.Vision = p
		slog.Info("provider created", "kind", "vision", "name", name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	if name := cfg.Providers.Sentiment.Name; name != "" {
		p, err := reg.CreateSentiment(cfg.Providers.Sentiment)
		if err != nil {
			return nil, fmt.Errorf("create sentiment provider %q: %w", name, err)
		}
		ps.Sentiment = p
		slog.Info("provider created", "kind", "sentiment", "name", name)
	}

	return ps, nil
}

// buildStore connects to PostgreSQL when a DSN is configured, otherwise it
// falls back to the in-memory store.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("no postgres_dsn configured, using the in-memory store")
		return store.NewMemStore(), func() {}, nil
	}

	dims := cfg.Storage.EmbeddingDimensions
	if dims <= 0 {
		dims = defaultEmbeddingDimensions
	}
	pg, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN, dims)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to postgres", "embedding_dimensions", dims)
	return pg, pg.Close, nil
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}

func certFile(cfg *config.Config) string {
	if cfg.Server.TLS == nil {
		return ""
	}
	return cfg.Server.TLS.CertFile
}

func keyFile(cfg *config.Config) string {
	if cfg.Server.TLS == nil {
		return ""
	}
	return cfg.Server.TLS.KeyFile
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       TalentLens — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("Vision", cfg.Providers.Vision.Name, cfg.Providers.Vision.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("Sentiment", cfg.Providers.Sentiment.Name, cfg.Providers.Sentiment.Model)
	storage := "in-memory"
	if cfg.Storage.PostgresDSN != "" {
		storage = "postgres"
	}
	fmt.Printf("║  Storage         : %-19s ║\n", storage)
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr(cfg))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
