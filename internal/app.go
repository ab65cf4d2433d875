package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/stickies/internal/backup"
	"github.com/starford/stickies/internal/catalog"
	"github.com/starford/stickies/internal/folder"
	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/noteservice"
	"github.com/starford/stickies/internal/notestore"
	"github.com/starford/stickies/internal/rewrite"
	"github.com/starford/stickies/internal/scheduler"
)

// Components are the wired domain services shared by every command.
type Components struct {
	Config    *Config
	Logger    *slog.Logger
	KV        *kv.DB
	Notes     *notestore.Store
	Folders   *folder.Broker
	Catalog   *catalog.Catalog
	Runner    *backup.Runner
	Scheduler *scheduler.Scheduler
	Service   *noteservice.Service

	closeOnce sync.Once
	closeErr  error
}

// NewLogger returns the structured JSON logger used by every command.
// Commands that own stdout (mcp) pass os.Stderr.
func NewLogger(w *os.File, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Open wires the components for a one-shot command. The in-process
// fallback timer is never armed.
func Open(opts ...Option) (*Components, error) {
	a, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return a.open(false)
}

func newApplication(opts []Option) (*application, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if a.logger == nil {
		a.logger = NewLogger(os.Stdout, a.config.App.LogLevel)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.launchedAt.IsZero() {
		a.launchedAt = a.now()
	}
	if a.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		a.executable = exe
	}
	if a.registry == nil {
		l := scheduler.NewLaunchd(a.config.Scheduler.AgentsDir)
		l.Launchctl = a.config.Scheduler.Launchctl
		a.registry = l
	}
	return a, nil
}

// open builds the components. With fallback set, the scheduler runs a
// backup on its own timer while the process lives.
func (a *application) open(fallback bool) (*Components, error) {
	cfg, logger := a.config, a.logger

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := kv.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &Components{Config: cfg, Logger: logger, KV: db}
	c.Notes = notestore.New(db, logger)
	c.Folders = folder.NewBroker(db, logger)
	c.Catalog, err = catalog.New(c.Folders, cfg.Backup.Extension, cfg.Backup.PreviewCache, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	c.Runner = &backup.Runner{
		KV:        db,
		Folders:   c.Folders,
		Writer:    backup.NewWriter(cfg.Backup.Extension, logger),
		Retention: cfg.Backup.Retention,
		Logger:    logger,
	}

	var trigger scheduler.TriggerFunc
	if fallback {
		trigger = func(ctx context.Context) {
			if _, err := c.Runner.RunOnce(ctx); err != nil {
				logger.Warn("scheduler: fallback backup failed", slog.String("error", err.Error()))
			}
		}
	}
	c.Scheduler = scheduler.New(a.registry, db, cfg.Scheduler.Params(a.executable, a.configFile), trigger, logger)

	var completer rewrite.Completer
	if cfg.AI.Enabled() {
		completer = rewrite.NewOpenAI(rewrite.OpenAIConfig{
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		})
	}
	c.Service = noteservice.NewService(noteservice.Deps{
		Notes:     c.Notes,
		Folders:   c.Folders,
		Catalog:   c.Catalog,
		Runner:    c.Runner,
		Scheduler: c.Scheduler,
		Completer: completer,
		Logger:    logger,
	})
	return c, nil
}

// Close stops the fallback timer and closes the database. It is safe to
// call more than once.
func (c *Components) Close() error {
	c.closeOnce.Do(func() {
		c.Scheduler.Close()
		c.closeErr = c.KV.Close()
	})
	return c.closeErr
}
