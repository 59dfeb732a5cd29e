package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/p-n-ai/statquiz/internal/ai"
	"github.com/p-n-ai/statquiz/internal/platform/cache"
	"github.com/p-n-ai/statquiz/internal/platform/config"
	"github.com/p-n-ai/statquiz/internal/platform/database"
	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/resolver"
	"github.com/p-n-ai/statquiz/internal/results"
	"github.com/p-n-ai/statquiz/internal/transport/rest"
	"github.com/p-n-ai/statquiz/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("reading .env failed", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.GenerateTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app holds the wired handler and the connections it owns.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := make(map[string]rest.Check)

	router, err := newAIRouter(cfg.AI)
	if err != nil {
		return nil, err
	}
	if router.HasProvider() {
		checks["ai"] = aiReady(router)
	} else {
		slog.Warn("no AI provider configured, generative fallback disabled")
	}

	curated, err := resolver.NewCuratedStrategy(cfg.Sources.DatasetsDir)
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}
	strategies := []resolver.Strategy{curated}
	if cfg.Sources.LiveEnabled {
		strategies = append(strategies, resolver.NewLiveStrategy(resolver.WithLiveBaseURL(cfg.Sources.LiveBaseURL)))
	}
	if router.HasProvider() {
		strategies = append(strategies, resolver.NewGenerativeStrategy(router))
	}
	res := resolver.New(strategies...)

	var quizCache quiz.Cache = quiz.NewMemoryCache()
	if cfg.Cache.URL != "" {
		client, err := cache.Connect(ctx, cfg.Cache.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		quizCache = quiz.NewRedisCache(client)
		checks["cache"] = cache.Ready(client)
	}

	var store results.Store = results.NewMemoryStore()
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		pg, err := results.NewPostgresStore(ctx, pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = pg
		checks["database"] = database.Ready(pool)
	}

	svc := quiz.NewService(res,
		quiz.WithCache(quizCache, cfg.Cache.TTL),
		quiz.WithDefaultMaxQuestions(cfg.Sources.MaxQuestions),
	)

	play := ws.NewHandler(svc, store, ws.WithOriginPatterns(originPatterns(cfg.Server.AllowedOrigins)...))

	a.handler = rest.NewRouter(rest.Config{
		Quizzes:         svc,
		Results:         store,
		Checks:          checks,
		Play:            play,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		GenerateTimeout: cfg.Server.GenerateTimeout,
	})

	slog.Info("quiz service ready",
		"strategies", res.Strategies(),
		"ai_providers", router.Providers(),
		"datasets", curated.Datasets(),
		"persistent_results", cfg.Database.URL != "",
		"shared_cache", cfg.Cache.URL != "",
	)
	return a, nil
}

// newAIRouter registers the configured providers in cfg.Order.
func newAIRouter(cfg config.AIConfig) (*ai.Router, error) {
	opts := []ai.RouterOption{ai.WithCallTimeout(cfg.CallTimeout)}
	var budget *ai.InMemoryBudget
	if cfg.TokenBudget > 0 {
		budget = ai.NewInMemoryBudget(cfg.BudgetWindow)
		opts = append(opts, ai.WithBudget(budget))
	}
	router := ai.NewRouter(opts...)

	for _, name := range cfg.Order {
		var provider ai.Provider
		switch name {
		case "openai":
			if cfg.OpenAI.APIKey != "" {
				provider = ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithDefaultModel(cfg.OpenAI.Model))
			}
		case "anthropic":
			if cfg.Anthropic.APIKey != "" {
				p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, ai.WithAnthropicModel(cfg.Anthropic.Model))
				if err != nil {
					return nil, fmt.Errorf("creating anthropic provider: %w", err)
				}
				provider = p
			}
		case "google":
			if cfg.Google.APIKey != "" {
				provider = ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model))
			}
		case "deepseek":
			if cfg.DeepSeek.APIKey != "" {
				provider = ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, ai.WithDefaultModel(cfg.DeepSeek.Model))
			}
		case "openrouter":
			if cfg.OpenRouter.APIKey != "" {
				provider = ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithDefaultModel(cfg.OpenRouter.Model))
			}
		case "ollama":
			if cfg.Ollama.Enabled {
				provider = ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithDefaultModel(cfg.Ollama.Model))
			}
		}
		if provider == nil {
			continue
		}
		router.Register(name, provider)
		if budget != nil {
			budget.SetBudget(name, int64(cfg.TokenBudget))
		}
	}
	return router, nil
}

// aiReady fails only when every provider is unhealthy.
func aiReady(router *ai.Router) rest.Check {
	return func(ctx context.Context) error {
		failures := router.HealthCheck(ctx)
		if len(failures) < len(router.Providers()) {
			return nil
		}
		errs := make([]error, 0, len(failures))
		for name, err := range failures {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return errors.Join(errs...)
	}
}

// originPatterns turns allowed CORS origins into WebSocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			patterns = append(patterns, origin)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
