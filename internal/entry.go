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
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/caged/internal/api"
	"github.com/starford/caged/internal/export"
	"github.com/starford/caged/internal/extract"
	"github.com/starford/caged/internal/mcpserver"
	"github.com/starford/caged/internal/metrics"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/sse"
	"github.com/starford/caged/internal/tui"
)

func newApplication(opts []Option, logOutput io.Writer) (*application, error) {
	app := &application{logOutput: logOutput, extractor: extract.PDF{}}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("tutorials_path", cfg.Tutorials.Path),
		slog.Duration("double_click_window", cfg.Clicks.DoubleClickWindow),
		slog.String("log_level", cfg.App.LogLevel.String()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	broker := sse.NewBroker(sse.DefaultUpdateThrottle)
	defer broker.Close()

	svc, err := openServices(ctx, app, logger, rec, serviceHooks{
		onSession:  sessionPublisher(broker),
		onTutorial: broker.PublishTutorialEvent,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	r := newRouter(cfg, svc, broker, reg, rec)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start tutorial watcher with SSE callback.
	if cfg.Tutorials.Watch {
		g.Go(func() error {
			if err := svc.library.Watch(gCtx); err != nil {
				logger.Error("tutorial watcher stopped", slog.String("error", err.Error()))
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

// sessionPublisher forwards manager events to SSE clients with the snapshot
// in its wire form.
func sessionPublisher(broker *sse.Broker) func(session.Event) {
	return func(ev session.Event) {
		var data any
		if ev.Snapshot != nil {
			data = api.NewSnapshotDTO(*ev.Snapshot)
		}
		broker.PublishSessionEvent(strings.TrimPrefix(string(ev.Type), "session."), ev.ID, data)
	}
}

// newRouter builds the root router: health probes and metrics at the top
// level, the API and SSE stream under /api.
func newRouter(cfg *Config, svc *services, broker *sse.Broker, reg *prometheus.Registry, rec metrics.Recorder) http.Handler {
	format, _ := export.ParseFormat(cfg.Export.DefaultFormat)
	h := api.NewHandler(svc.manager, svc.library,
		api.WithRecorder(rec),
		api.WithDefaultFormat(format))
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := svc.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(reg))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, err := openServices(ctx, app, logger, metrics.Nop(), serviceHooks{})
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Tutorials.Watch {
		go func() {
			if err := svc.library.Watch(ctx); err != nil {
				logger.Error("tutorial watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc.manager, svc.library, nil).ServeStdio()
}

// RunTUI opens a new session in the terminal. The session is persisted like
// any other and remains available to the HTTP API afterwards. Exports are
// written to outDir.
func RunTUI(ctx context.Context, outDir string, opts ...Option) error {
	// The terminal belongs to the UI.
	app, err := newApplication(opts, io.Discard)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(app.logOutput, nil))
	slog.SetDefault(logger)

	changes := make(chan struct{}, 1)
	svc, err := openServices(ctx, app, logger, metrics.Nop(), serviceHooks{
		onSession: func(session.Event) {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	s, err := svc.manager.Create(ctx, session.Params{})
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(s, changes, outDir),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
