// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/stickies/internal/api"
	"github.com/starford/stickies/internal/catalog"
	"github.com/starford/stickies/internal/ipc"
	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/sse"
)

// Run starts the long-lived instance: HTTP API, event stream, backup folder
// watcher and the in-process fallback timer.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.Storage.SQLitePath),
		slog.String("scheduler_label", cfg.Scheduler.Label),
		slog.Bool("ai_enabled", cfg.AI.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	comps, err := app.open(cfg.Scheduler.Fallback)
	if err != nil {
		return err
	}
	defer comps.Close()

	if path, ok := comps.Folders.Resolve(); ok {
		logger.Info("backup folder resolved", slog.String("path", path))
	} else {
		logger.Info("no backup folder selected")
	}

	state, err := comps.Scheduler.Reconcile(ctx)
	if err != nil {
		logger.Warn("scheduler reconcile failed", slog.String("error", err.Error()))
	} else {
		logger.Info("scheduler state", slog.String("state", state.String()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	comps.Service.Events = broker
	comps.Notes.OnChange(broker.PublishNoteEvent)
	if err == nil {
		broker.PublishScheduler(state)
	}

	// The serving process is never launched just for a trigger, so the
	// receiver has no exit hook.
	receiver := &ipc.Receiver{
		Backup: func(ctx context.Context) error {
			_, err := comps.Runner.RunOnce(ctx)
			return err
		},
		LaunchedAt: app.launchedAt,
		Grace:      cfg.Backup.LaunchGrace,
		Now:        app.now,
		Logger:     logger,
	}

	apiRouter := api.NewRouter(comps.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, receiver)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoints are unauthenticated. Readiness reports whether
	// backups have somewhere to go.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/health/ready", comps.ready)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the backup folder and push listings to the event stream.
	g.Go(func() error {
		err := comps.Catalog.Watch(gCtx, cfg.Backup.PollInterval, func(entries []catalog.Entry, err error) {
			broker.PublishBackups(entries, err)
		})
		if err != nil {
			logger.Warn("backup folder watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ready reports whether backups have somewhere to go and when the note
// collection was last persisted.
func (c *Components) ready(w http.ResponseWriter, r *http.Request) {
	_, selected := c.Service.Folder(r.Context())
	body := map[string]any{
		"status":          "ok",
		"folder_selected": selected,
		"notes":           len(c.Notes.Notes()),
	}
	savedAt, ok, err := c.KV.UpdatedAt(kv.KeyNotes)
	if err != nil {
		c.Logger.Error("health: read notes timestamp failed", slog.String("error", err.Error()))
		writeHealth(w, http.StatusServiceUnavailable, map[string]any{"status": "storage unavailable"})
		return
	}
	if ok {
		body["notes_saved_at"] = savedAt.UTC()
	}
	writeHealth(w, http.StatusOK, body)
}

func writeHealth(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
