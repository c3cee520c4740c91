// Command server runs the generation orchestration API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glyphsmith/glyphsmith-api/internal/api"
	"github.com/glyphsmith/glyphsmith-api/internal/config"
	"github.com/glyphsmith/glyphsmith-api/internal/dispatch"
	"github.com/glyphsmith/glyphsmith-api/internal/events"
	"github.com/glyphsmith/glyphsmith-api/internal/pipeline"
	"github.com/glyphsmith/glyphsmith-api/internal/platform/gemini"
	"github.com/glyphsmith/glyphsmith-api/internal/platform/logger"
	"github.com/glyphsmith/glyphsmith-api/internal/render"
	"github.com/glyphsmith/glyphsmith-api/internal/service"
	"github.com/glyphsmith/glyphsmith-api/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	log.Info("starting server", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	artifacts, cleanup, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer cleanup()

	providers, err := buildProviders(ctx, cfg, log)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		return errors.New("no generation providers configured")
	}

	dispatcher := dispatch.NewDispatcher(providers, dispatch.Config{
		RateLimitBackoff: time.Duration(cfg.Dispatch.RateLimitBackoffMs) * time.Millisecond,
	}, log)

	emitter := events.NewInMemoryEventEmitter(log)
	engine := pipeline.NewEngine(pipeline.NewRegistry(), pipeline.Config{
		MaxStepRetries: cfg.Pipeline.MaxStepRetries,
	}, emitter, log)

	params := pipeline.ModelParams{
		Model:           cfg.LLM.GeminiModel,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	}
	pipeline.NewStepSet(dispatcher, params, log).Register(engine)

	scheduler := render.NewScheduler(render.NewPreviewRenderer(), render.Config{
		Debounce:      time.Duration(cfg.Render.DebounceMs) * time.Millisecond,
		MaxConcurrent: cfg.Render.MaxConcurrent,
	}, log)

	svc := service.NewGenerationService(dispatcher, engine, params, artifacts, log)

	router := api.NewRouter(
		api.NewGenerationHandler(svc, log),
		api.NewRenderHandler(scheduler, log),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildStore selects the configured artifact store backend.
func buildStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect artifact store: %w", err)
		}
		return redisStore, func() { _ = redisStore.Close() }, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// buildProviders assembles the ordered fallback list: configured HTTP
// providers first, in configuration order, then Gemini when a key is set.
func buildProviders(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]dispatch.Provider, error) {
	var providers []dispatch.Provider

	for _, spec := range cfg.Dispatch.Providers {
		providers = append(providers, dispatch.NewHTTPProvider(dispatch.HTTPProviderSpec{
			Name:      spec.Name,
			Endpoint:  spec.Endpoint,
			APIKey:    spec.APIKey,
			Model:     spec.Model,
			Streaming: spec.Streaming,
		}, nil))
	}

	if cfg.LLM.GeminiAPIKey != "" {
		provider, err := gemini.NewProvider(ctx, log, gemini.Config{
			APIKey: cfg.LLM.GeminiAPIKey,
			Model:  cfg.LLM.GeminiModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build gemini provider: %w", err)
		}
		providers = append(providers, provider)
	}

	return providers, nil
}
