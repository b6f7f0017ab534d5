// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/livepad/internal/api"
	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/importer"
	"github.com/starford/livepad/internal/mcpserver"
	"github.com/starford/livepad/internal/metrics"
	"github.com/starford/livepad/internal/sse"
)

// Version is reported by the MCP server.
var Version = "dev"

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Bool("auto_preview", cfg.Preview.AutoUpdate),
		slog.String("watch_dir", cfg.Import.WatchDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.openComponents(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// A stdio MCP server on this store would keep its own tree and console.
	release, err := acquireServerLock(c.store, cfg.App.HTTP.Address())
	if err != nil {
		return err
	}
	defer release()

	// SSE broker fed by the tree, the preview and the console.
	broker := sse.NewBroker(500 * time.Millisecond)
	defer broker.Close()
	broker.Attach(c.tree, c.live, c.bridge)

	r := newRouter(cfg, c, broker, logger)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Console drain loop.
	g.Go(func() error {
		return c.bridge.Run(gCtx)
	})

	// Optional import directory.
	if dir := cfg.Import.WatchDir; dir != "" {
		im := importer.New(c.tree, dir, logger)
		g.Go(func() error {
			if err := im.Watch(gCtx); err != nil {
				logger.Error("import watcher failed", slog.String("error", err.Error()))
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// SSE streams only end when their clients go away or the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// newRouter assembles health, metrics, the REST API and the MCP endpoint on
// one set of components.
func newRouter(cfg *Config, c *components, events http.Handler, logger *slog.Logger) chi.Router {
	auth := api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)
	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token,
		events, console.NewWebSocketHandler(c.bridge, logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

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
	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// MCP over streamable HTTP shares the tree and console with the API.
	r.With(auth).Handle("/mcp", mcpserver.New(c.svc, Version).HTTPHandler())

	return r
}

// errShutdown ends the group so the drain loop and watcher stop with the
// server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
// Logs go to stderr. The stdio server owns its tree and console, so it refuses
// a store that a running HTTP server holds (use that server's /mcp endpoint
// instead) unless WithForceStdio is given.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := app.openComponents(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if !app.forceStdio {
		if err := checkServerLock(c.store); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = c.bridge.Run(ctx) }()

	logger.Info("MCP server starting on stdio", slog.String("storage_driver", app.config.Storage.Driver))
	return mcpserver.New(c.svc, Version).ServeStdio()
}

// Export writes the stored project as a zip archive to w.
func Export(ctx context.Context, w io.Writer, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := app.openComponents(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.svc.Export(ctx, w)
}
