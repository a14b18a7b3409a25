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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/folio"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/store"
	"github.com/starford/folio/internal/watcher"
)

func newApplication(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

func (a *application) watcherOptions() watcher.Options {
	return watcher.Options{
		Debounce: a.config.Watcher.Debounce,
		Buffer:   a.config.Watcher.Buffer,
	}
}

// bootWorkspace registers and activates the configured workspace folder, if
// any, and reconciles it once when initialSync is set. ok is false when no
// folder is configured.
func (a *application) bootWorkspace(ctx context.Context, f *folio.App, logger *slog.Logger, initialSync bool) (id string, ok bool, err error) {
	path := a.config.Workspace.Path
	if path == "" {
		return "", false, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", false, fmt.Errorf("create workspace dir: %w", err)
	}
	ws, err := f.RegisterWorkspace(ctx, path)
	if err != nil {
		return "", false, err
	}
	if ws, err = f.ActivateWorkspace(ctx, ws.ID); err != nil {
		return "", false, err
	}
	if !initialSync {
		return ws.ID, true, nil
	}
	stats, err := f.SyncWorkspace(ctx, ws.ID)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done",
			slog.String("workspace_id", ws.ID),
			slog.Int("created", stats.Created),
			slog.Int("updated", stats.Updated),
			slog.Int("deleted", stats.Deleted))
	}
	return ws.ID, true, nil
}

// Exec opens the database, boots the configured workspace and runs fn
// against the application facade. It backs the one-shot CLI commands.
func Exec(ctx context.Context, fn func(context.Context, *folio.App) error, opts ...Option) error {
	a, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	db, err := store.Open(a.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	f := folio.New(db, a.watcherOptions(), nil, logger)
	defer f.StopAll()
	if _, _, err := a.bootWorkspace(ctx, f, logger, false); err != nil {
		return err
	}
	return fn(ctx, f)
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, version string, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	return Exec(ctx, func(_ context.Context, f *folio.App) error {
		return mcpserver.New(f, version).ServeStdio()
	}, opts...)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	a, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// SSE broker receives note and sync events from the facade.
	broker := sse.NewBroker(cfg.SSE.GraphThrottle)
	defer broker.Close()

	f := folio.New(db, a.watcherOptions(), broker, logger)
	defer f.StopAll()

	wsID, ok, err := a.bootWorkspace(ctx, f, logger, true)
	if err != nil {
		return err
	}
	if ok && cfg.Workspace.Watch {
		if _, err := f.WatchWorkspace(ctx, wsID); err != nil {
			logger.Warn("watch failed", slog.String("workspace_id", wsID), slog.String("error", err.Error()))
		}
	}

	apiRouter := api.NewRouter(f, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := f.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams only end when their clients go away or the broker closes.
		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		f.StopAll()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
