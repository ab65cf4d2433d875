// Package backup writes timestamped snapshots of the note collection.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/models"
	"github.com/starford/stickies/internal/storage"
)

const (
	// Prefix starts every snapshot file name.
	Prefix = "backup_"
	// DefaultExt is the snapshot extension without the dot.
	DefaultExt = "stickies"
	// TimeLayout is the timestamp embedded in snapshot names.
	TimeLayout = "2006-01-02_15-04-05"
)

// Filename returns the snapshot name for t, e.g. backup_2024-03-09_14-05-00.stickies.
func Filename(t time.Time, ext string) string {
	return Prefix + t.Local().Format(TimeLayout) + "." + ext
}

// ParseFilename extracts the timestamp from a snapshot name.
func ParseFilename(name, ext string) (time.Time, bool) {
	suffix := "." + ext
	if !strings.HasPrefix(name, Prefix) || !strings.HasSuffix(name, suffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, Prefix), suffix)
	t, err := time.ParseInLocation(TimeLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Writer encodes the collection and writes it to a folder.
type Writer struct {
	Ext    string
	Now    func() time.Time
	Logger *slog.Logger
}

// NewWriter returns a Writer using ext (DefaultExt when empty).
func NewWriter(ext string, logger *slog.Logger) *Writer {
	if ext == "" {
		ext = DefaultExt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{Ext: ext, Now: time.Now, Logger: logger}
}

// CreateBackup writes one pretty-printed snapshot of notes into dst and
// returns its name. The file appears atomically.
func (w *Writer) CreateBackup(notes []models.Note, dst storage.Provider) (string, error) {
	data, err := models.EncodeNotes(notes, true)
	if err != nil {
		w.Logger.Error("backup: encode failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("backup: %w", err)
	}
	name := Filename(w.Now(), w.Ext)
	if err := dst.Write(name, data); err != nil {
		w.Logger.Error("backup: write failed",
			slog.String("folder", dst.Root()), slog.String("error", err.Error()))
		return "", fmt.Errorf("backup: write %s: %w: %w", name, apperr.ErrAccess, err)
	}
	w.Logger.Info("backup: snapshot written",
		slog.String("name", name), slog.Int("notes", len(notes)))
	return name, nil
}

// FolderOpener resolves the backup folder.
type FolderOpener interface {
	Open() (storage.Provider, error)
}

// Runner performs one backup from persisted state. It is what the
// periodic job runs, and it never relies on an in-memory store.
type Runner struct {
	KV        kv.Store
	Folders   FolderOpener
	Writer    *Writer
	Retention int
	Logger    *slog.Logger
}

// RunOnce reloads the notes, writes a snapshot and applies retention.
func (r *Runner) RunOnce(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := r.Folders.Open()
	if err != nil {
		r.Logger.Warn("backup: no usable folder", slog.String("error", err.Error()))
		return "", fmt.Errorf("backup: %w", err)
	}

	notes := []models.Note{}
	data, ok, err := r.KV.Get(kv.KeyNotes)
	if err != nil {
		return "", fmt.Errorf("backup: load notes: %w", err)
	}
	if ok {
		notes, err = models.DecodeNotes(data)
		if err != nil {
			r.Logger.Error("backup: saved notes unreadable", slog.String("error", err.Error()))
			return "", fmt.Errorf("backup: %w", err)
		}
	}

	name, err := r.Writer.CreateBackup(notes, dst)
	if err != nil {
		return "", err
	}
	if r.Retention > 0 {
		r.applyRetention(dst)
	}
	return name, nil
}

// applyRetention keeps the newest Retention snapshots. Failures are logged only.
func (r *Runner) applyRetention(dst storage.Provider) {
	files, err := dst.List(Prefix, "."+r.Writer.Ext)
	if err != nil {
		r.Logger.Warn("backup: retention list failed", slog.String("error", err.Error()))
		return
	}
	type snap struct {
		name string
		at   time.Time
	}
	var snaps []snap
	for _, f := range files {
		if at, ok := ParseFilename(f.Name, r.Writer.Ext); ok {
			snaps = append(snaps, snap{f.Name, at})
		}
	}
	if len(snaps) <= r.Retention {
		return
	}
	slices.SortFunc(snaps, func(a, b snap) int { return a.at.Compare(b.at) })
	for _, s := range snaps[:len(snaps)-r.Retention] {
		if err := dst.Delete(s.name); err != nil {
			r.Logger.Error("backup: delete old snapshot failed",
				slog.String("name", s.name), slog.String("error", err.Error()))
			continue
		}
		r.Logger.Info("backup: deleted old snapshot", slog.String("name", s.name))
	}
}
