package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/stickies/internal/backup"
)

// DefaultPollInterval matches how often the folder timestamp is checked.
const DefaultPollInterval = time.Second

// ChangeFunc receives a fresh listing whenever the folder contents change.
// err is non-nil when the folder became unavailable.
type ChangeFunc func(entries []Entry, err error)

// Watch checks the folder modification time every interval and re-lists
// only when it changed, the folder was swapped, or it became (un)available.
// Filesystem notifications trigger an immediate check. It blocks until ctx
// is cancelled.
func (c *Catalog) Watch(ctx context.Context, interval time.Duration, cb ChangeFunc) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		root    string
		lastMod time.Time
		primed  bool
		lastErr bool
	)

	check := func() {
		dst, err := c.folders.Open()
		if err != nil {
			if root != "" {
				_ = w.Remove(root)
				root = ""
			}
			if !primed || !lastErr {
				primed, lastErr = true, true
				cb(nil, err)
			}
			return
		}
		if dst.Root() != root {
			if root != "" {
				_ = w.Remove(root)
			}
			root = dst.Root()
			lastMod = time.Time{}
			primed = false
			if err := w.Add(root); err != nil {
				c.logger.Warn("catalog: watch folder failed", slog.String("path", root), slog.String("error", err.Error()))
			}
		}
		mod, err := dst.ModTime()
		if err != nil {
			c.logger.Warn("catalog: folder stat failed", slog.String("error", err.Error()))
			return
		}
		if primed && !lastErr && mod.Equal(lastMod) {
			return
		}
		files, err := dst.List(backup.Prefix, "."+c.ext)
		if err != nil {
			c.logger.Warn("catalog: list failed", slog.String("error", err.Error()))
			return
		}
		lastMod, primed, lastErr = mod, true, false
		c.logger.Debug("catalog: folder changed", slog.String("path", root), slog.Int("snapshots", len(files)))
		cb(c.entries(files), nil)
	}

	c.logger.Info("catalog: watching", slog.Duration("interval", interval))
	check()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("catalog: watch stopped")
			return nil
		case <-ticker.C:
			check()
		case _, ok := <-w.Events:
			if !ok {
				return nil
			}
			check()
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("catalog: watcher error", slog.String("error", werr.Error()))
		}
	}
}
