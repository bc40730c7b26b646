// Package main provides the entry point for the review console, the
// client-side shell that tracks systematic review workflows on the backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/helixir/review-console/internal/api"
	"github.com/helixir/review-console/internal/config"
	"github.com/helixir/review-console/internal/domain"
	"github.com/helixir/review-console/internal/observability"
	"github.com/helixir/review-console/internal/store"
	"github.com/helixir/review-console/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "console").Logger()
	logger.Info().Msg("review console starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One session ID per console run, attached to every backend request.
	sessionID := uuid.NewString()
	ctx = observability.WithSessionID(ctx, sessionID)
	logger = logger.With().Str("session_id", sessionID).Logger()

	metrics := observability.NewMetrics("revcon")

	// Local diagnostics endpoint (metrics + health).
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics)
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("metrics endpoint listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	fs := afero.NewOsFs()

	// Auth: tokens are cached on disk and refreshed via the token endpoint.
	tokens := api.NewTokenManager(api.TokenManagerConfig{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scopes:       cfg.Auth.Scopes,
		Store:        api.NewFileTokenStore(fs, cfg.Auth.TokenPath),
		Logger:       logger,
		Metrics:      metrics,
	})

	// Backend API client with rate limiting and bounded retries.
	client, err := api.NewClient(api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		HTTP: api.NewHTTPClient(api.HTTPClientConfig{
			Timeout:    cfg.API.Timeout,
			RateLimit:  cfg.API.RateLimit,
			BurstSize:  cfg.API.BurstSize,
			MaxRetries: cfg.API.MaxRetries,
			RetryDelay: cfg.API.RetryDelay,
			UserAgent:  cfg.API.UserAgent,
		}),
		Tokens:       tokens,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	// State store, restored from the previous session's snapshot.
	st := store.New(logger)
	if cfg.Store.SnapshotPath != "" {
		if err := st.Restore(fs, cfg.Store.SnapshotPath); err != nil {
			logger.Warn().Err(err).Msg("could not restore session snapshot, starting fresh")
		}
	}

	synchronizer, err := syncer.New(syncer.Config{
		Backend:  client,
		Store:    st,
		Interval: cfg.Polling.Interval,
		Jitter:   cfg.Polling.Jitter,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("create synchronizer: %w", err)
	}
	defer synchronizer.Stop()

	// Refresh the workflow history so the session starts with the backend's
	// view, deduplicated against whatever the snapshot carried.
	if cfg.Console.RefreshHistory {
		if summaries, err := client.ListWorkflows(ctx); err != nil {
			logger.Warn().Err(err).Msg("could not refresh workflow history")
		} else {
			st.UpsertHistory(summaries...)
			logger.Info().Int("workflows", len(summaries)).Msg("workflow history refreshed")
		}
	}

	// Optionally watch one workflow until it settles.
	if id := cfg.Console.WatchWorkflowID; id != "" {
		if _, err := synchronizer.Watch(ctx, id); err != nil {
			if errors.Is(err, domain.ErrSessionExpired) {
				st.SetSessionExpired(true)
			}
			logger.Error().Err(err).Str("workflow_id", id).Msg("could not watch workflow")
		}
	}

	logger.Info().
		Dur("poll_interval", cfg.Polling.Interval).
		Str("backend", cfg.API.BaseURL).
		Msg("review console ready")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	synchronizer.Stop()

	if cfg.Store.Autosave && cfg.Store.SnapshotPath != "" {
		if err := st.Save(fs, cfg.Store.SnapshotPath); err != nil {
			logger.Error().Err(err).Msg("could not save session snapshot")
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics endpoint shutdown failed")
		}
	}

	logger.Info().Msg("review console stopped")
	return nil
}

// newMetricsServer builds the local diagnostics server: Prometheus metrics at
// the configured path plus a liveness probe.
func newMetricsServer(cfg config.MetricsConfig) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(cfg.Path, promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
