// Command listener is the main entry point for the Listener voice-note server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/listener-ai/listener/internal/config"
	"github.com/listener-ai/listener/internal/cooldown"
	"github.com/listener-ai/listener/internal/health"
	"github.com/listener-ai/listener/internal/identity"
	"github.com/listener-ai/listener/internal/observe"
	"github.com/listener-ai/listener/internal/pipeline"
	"github.com/listener-ai/listener/internal/reply"
	"github.com/listener-ai/listener/internal/resilience"
	"github.com/listener-ai/listener/internal/safety"
	"github.com/listener-ai/listener/internal/server"
	"github.com/listener-ai/listener/internal/storage"
	"github.com/listener-ai/listener/pkg/provider/stt"
	sttopenai "github.com/listener-ai/listener/pkg/provider/stt/openai"
	"github.com/listener-ai/listener/pkg/provider/stt/whisper"
	"github.com/listener-ai/listener/pkg/provider/tts"
	ttsopenai "github.com/listener-ai/listener/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "listener: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "listener: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("listener starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "listener"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttProvider, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to create stt provider", "name", cfg.Providers.STT.Name, "err", err)
		return 1
	}
	if fb := cfg.Providers.STTFallback; fb != nil {
		fallback, err := reg.CreateSTT(*fb)
		if err != nil {
			slog.Error("failed to create stt fallback", "name", fb.Name, "err", err)
			return 1
		}
		chain := resilience.NewSTTChain(sttProvider, cfg.Providers.STT.Name, resilience.Settings{})
		chain.AddFallback(fb.Name, fallback)
		sttProvider = chain
		slog.Info("stt failover enabled", "primary", cfg.Providers.STT.Name, "fallback", fb.Name)
	}

	ttsProvider, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}
	if fb := cfg.Providers.TTSFallback; fb != nil {
		fallback, err := reg.CreateTTS(*fb)
		if err != nil {
			slog.Error("failed to create tts fallback", "name", fb.Name, "err", err)
			return 1
		}
		chain := resilience.NewTTSChain(ttsProvider, cfg.Providers.TTS.Name, resilience.Settings{})
		chain.AddFallback(fb.Name, fallback)
		ttsProvider = chain
		slog.Info("tts failover enabled", "primary", cfg.Providers.TTS.Name, "fallback", fb.Name)
	}
	slog.Info("providers created",
		"stt", cfg.Providers.STT.Name,
		"tts", cfg.Providers.TTS.Name,
	)

	// ── Cooldown store ────────────────────────────────────────────────────────
	var (
		cooldowns cooldown.Store
		checkers  []health.Checker
	)
	if cfg.Cooldown.RedisAddr != "" {
		var ropts []cooldown.RedisOption
		if cfg.Cooldown.RedisPassword != "" {
			ropts = append(ropts, cooldown.WithRedisPassword(cfg.Cooldown.RedisPassword))
		}
		rs, err := cooldown.NewRedisStore(ctx, cfg.Cooldown.RedisAddr, cfg.Cooldown.Window, ropts...)
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.Cooldown.RedisAddr, "err", err)
			return 1
		}
		defer rs.Close()
		cooldowns = rs
		checkers = append(checkers, health.Checker{Name: "redis", Check: rs.Ping})
		slog.Info("cooldown store: redis", "addr", cfg.Cooldown.RedisAddr)
	} else {
		cooldowns = cooldown.NewMemStore(cfg.Cooldown.Window)
		slog.Info("cooldown store: in-memory")
	}

	// ── Identity ──────────────────────────────────────────────────────────────
	var userStore identity.Store
	if cfg.Identity.PostgresDSN != "" {
		pg, err := identity.NewPostgresStore(ctx, cfg.Identity.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		userStore = pg
		checkers = append(checkers, health.Checker{Name: "database", Check: pg.Ping})
		slog.Info("user store: postgres")
	} else {
		userStore = identity.NewMemStore()
		slog.Info("user store: in-memory")
	}

	var tokenOpts []identity.TokenOption
	if cfg.Identity.AccessTTL > 0 {
		tokenOpts = append(tokenOpts, identity.WithAccessTTL(cfg.Identity.AccessTTL))
	}
	if cfg.Identity.RealtimeModel != "" {
		tokenOpts = append(tokenOpts, identity.WithRealtimeModel(cfg.Identity.RealtimeModel))
	}
	tokens, err := identity.NewTokenService(cfg.Identity.JWTSecret, tokenOpts...)
	if err != nil {
		slog.Error("failed to create token service", "err", err)
		return 1
	}
	identities := identity.NewService(userStore, tokens)

	// ── Safety classifier ─────────────────────────────────────────────────────
	var classifierOpts []safety.Option
	if g := cfg.Safety.Grader; g != nil {
		var graderOpts []safety.GraderOption
		if g.Model != "" {
			graderOpts = append(graderOpts, safety.WithGraderModel(g.Model))
		}
		if g.BaseURL != "" {
			graderOpts = append(graderOpts, safety.WithGraderBaseURL(g.BaseURL))
		}
		grader, err := safety.NewOpenAIGrader(g.APIKey, graderOpts...)
		if err != nil {
			slog.Error("failed to create grader", "err", err)
			return 1
		}
		classifierOpts = append(classifierOpts, safety.WithGrader(grader))
		if g.Timeout > 0 {
			classifierOpts = append(classifierOpts, safety.WithGraderTimeout(g.Timeout))
		}
		slog.Info("remote grader enabled", "model", g.Model)
	}
	classifier := safety.NewClassifier(classifierOpts...)

	// ── Reply selector ────────────────────────────────────────────────────────
	var responder reply.Responder
	if cfg.Reply.APIKey != "" {
		var responderOpts []reply.ResponderOption
		if cfg.Reply.Model != "" {
			responderOpts = append(responderOpts, reply.WithResponderModel(cfg.Reply.Model))
		}
		if cfg.Reply.BaseURL != "" {
			responderOpts = append(responderOpts, reply.WithResponderBaseURL(cfg.Reply.BaseURL))
		}
		if cfg.Reply.SystemPrompt != "" {
			responderOpts = append(responderOpts, reply.WithSystemPrompt(cfg.Reply.SystemPrompt))
		}
		r, err := reply.NewOpenAIResponder(cfg.Reply.APIKey, responderOpts...)
		if err != nil {
			slog.Error("failed to create responder", "err", err)
			return 1
		}
		responder = r
	}
	selector := reply.NewSelector(responder)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pipeOpts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if cfg.Storage.Bucket != "" {
		store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Prefix:    cfg.Storage.Prefix,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			slog.Error("failed to create object store", "err", err)
			return 1
		}
		pipeOpts = append(pipeOpts, pipeline.WithStore(store))
		slog.Info("raw audio archival enabled", "bucket", cfg.Storage.Bucket)
	}
	pipe := pipeline.New(cooldowns, classifier, selector, sttProvider, ttsProvider, pipeOpts...)

	// ── HTTP server ───────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	api := server.New(identities, pipe, health.New(checkers...), metrics)
	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		var err error
		if cfg.Server.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// Listener into reg. Each factory receives a config.ProviderEntry and
// constructs the provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, ttsopenai.WithVoice(voice))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Listener — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printLine("STT", providerLabel(cfg.Providers.STT.Name, cfg.Providers.STT.Model))
	printLine("TTS", providerLabel(cfg.Providers.TTS.Name, cfg.Providers.TTS.Model))
	if cfg.Safety.Grader != nil {
		printLine("Grader", providerLabel("openai", cfg.Safety.Grader.Model))
	} else {
		printLine("Grader", "(keywords only)")
	}
	if cfg.Reply.APIKey != "" {
		printLine("Responder", providerLabel("openai", cfg.Reply.Model))
	} else {
		printLine("Responder", "(static)")
	}
	if cfg.Cooldown.RedisAddr != "" {
		printLine("Cooldowns", "redis")
	} else {
		printLine("Cooldowns", "in-memory")
	}
	if cfg.Identity.PostgresDSN != "" {
		printLine("Users", "postgres")
	} else {
		printLine("Users", "in-memory")
	}
	if cfg.Storage.Bucket != "" {
		printLine("Archival", cfg.Storage.Bucket)
	} else {
		printLine("Archival", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		printLine("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	if name == "" {
		return "(not configured)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printLine(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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

// ── Helpers ───────────────────────────────────────────────────────────────────

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
