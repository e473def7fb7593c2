// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/renholt/crossbar/internal/api"
	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/matrixstate"
	"github.com/renholt/crossbar/internal/scenes"
	"github.com/renholt/crossbar/internal/sse"
	"github.com/renholt/crossbar/internal/transport"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("control_url", cfg.Matrix.ControlURL),
		slog.Int("inputs", cfg.Matrix.Inputs),
		slog.Int("outputs", cfg.Matrix.Outputs),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Scene database.
	db, err := scenes.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init scene db: %w", err)
	}
	defer db.Close()

	// Live matrix state (routing, port flags, names).
	state := matrixstate.New(cfg.Matrix.Inputs, cfg.Matrix.Outputs)

	// HTTP transport to the matrix unit's control endpoint.
	unit, err := transport.NewHTTPClient(cfg.Matrix.ControlURL, cfg.Matrix.ControlTimeout)
	if err != nil {
		return fmt.Errorf("init unit transport: %w", err)
	}

	// SSE broker. Resolved-target events are throttled so bursts of state
	// updates coalesce into one notification.
	broker := sse.NewBroker(200 * time.Millisecond)

	// CEC controller: re-resolves targets on every state change and
	// publishes the result to connected SSE clients.
	ctrl := cec.NewController(state, db, unit, logger, func(set cec.TargetSet) {
		broker.PublishTargets(set)
	})

	// Build API handler and router.
	h := api.NewHandler(ctrl, db, state, unit, broker)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the port-names file for edits, if one is configured.
	if cfg.Matrix.NamesPath != "" {
		g.Go(func() error {
			if err := matrixstate.WatchNames(gCtx, state, cfg.Matrix.NamesPath, logger); err != nil {
				logger.Warn("names watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
