// Package catalog lists, previews and deletes backup snapshots in the chosen folder.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/backup"
	"github.com/starford/stickies/internal/models"
	"github.com/starford/stickies/internal/storage"
)

// DefaultPreviewCache is the number of decoded snapshots kept in memory.
const DefaultPreviewCache = 32

// Opener resolves the backup folder. It returns apperr.ErrNoFolder when none is usable.
type Opener interface {
	Open() (storage.Provider, error)
}

// Entry describes one snapshot file.
type Entry struct {
	Name string `json:"name"`
	// Time is parsed from the name; zero when the name carries no valid timestamp.
	Time    time.Time `json:"time,omitzero"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type previewKey struct {
	root, name string
	mod        int64
	size       int64
}

// Catalog reads the backup folder on demand.
type Catalog struct {
	folders Opener
	ext     string
	logger  *slog.Logger
	cache   *lru.Cache[previewKey, []models.Note]
}

// New creates a catalog over folders for snapshots with extension ext.
func New(folders Opener, ext string, cacheSize int, logger *slog.Logger) (*Catalog, error) {
	if ext == "" {
		ext = backup.DefaultExt
	}
	if cacheSize <= 0 {
		cacheSize = DefaultPreviewCache
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[previewKey, []models.Note](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: preview cache: %w", err)
	}
	return &Catalog{folders: folders, ext: ext, logger: logger, cache: cache}, nil
}

// List returns the names of snapshot files in the folder, unordered.
func (c *Catalog) List() ([]string, error) {
	files, _, err := c.files()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, nil
}

// Entries returns the snapshots with metadata, newest first.
func (c *Catalog) Entries() ([]Entry, error) {
	files, _, err := c.files()
	if err != nil {
		return nil, err
	}
	return c.entries(files), nil
}

func (c *Catalog) entries(files []storage.FileInfo) []Entry {
	out := make([]Entry, len(files))
	for i, f := range files {
		out[i] = Entry{Name: f.Name, Size: f.Size, ModTime: f.ModTime}
		if t, ok := backup.ParseFilename(f.Name, c.ext); ok {
			out[i].Time = t
		} else {
			c.logger.Debug("catalog: unparseable snapshot name", slog.String("name", f.Name))
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int { return compareTimes(a.Time, b.Time) })
	return out
}

// SortedByRecency orders names newest first by their embedded timestamp.
// Names without a valid timestamp keep their relative order after all dated ones.
func (c *Catalog) SortedByRecency(names []string) []string {
	return SortedByRecency(names, c.ext)
}

// SortedByRecency is the package-level form of Catalog.SortedByRecency.
func SortedByRecency(names []string, ext string) []string {
	type dated struct {
		name string
		at   time.Time
	}
	ds := make([]dated, len(names))
	for i, n := range names {
		ds[i].name = n
		ds[i].at, _ = backup.ParseFilename(n, ext)
	}
	slices.SortStableFunc(ds, func(a, b dated) int { return compareTimes(a.at, b.at) })
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.name
	}
	return out
}

// compareTimes sorts descending with zero times last.
func compareTimes(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return b.Compare(a)
}

// IsSnapshot reports whether name is a snapshot file this catalog manages:
// "backup_*.<ext>" directly inside the folder. Other files in the folder,
// including the folder marker, are never read or removed.
func (c *Catalog) IsSnapshot(name string) bool {
	return filepath.Base(name) == name &&
		strings.HasPrefix(name, backup.Prefix) &&
		strings.HasSuffix(name, "."+c.ext)
}

// Delete removes each named snapshot. Successful removals are kept even
// when others fail; the failures, including names that are not snapshots,
// are reported as *apperr.PartialDeleteError.
func (c *Catalog) Delete(names []string) error {
	dst, err := c.folders.Open()
	if err != nil {
		return fmt.Errorf("catalog: delete: %w", err)
	}
	var errs []error
	for _, n := range names {
		if !c.IsSnapshot(n) {
			c.logger.Warn("catalog: refusing to delete non-snapshot", slog.String("name", n))
			errs = append(errs, fmt.Errorf("catalog: %q is not a snapshot: %w", n, apperr.ErrInvalid))
			continue
		}
		if err := dst.Delete(n); err != nil {
			c.logger.Warn("catalog: delete failed", slog.String("name", n), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		c.logger.Info("catalog: deleted", slog.String("name", n))
	}
	if len(errs) > 0 {
		return &apperr.PartialDeleteError{Failed: len(errs), Total: len(names), Errs: errs}
	}
	return nil
}

// Preview decodes a snapshot. ok is false when the file is missing or unreadable.
func (c *Catalog) Preview(name string) ([]models.Note, bool) {
	if !c.IsSnapshot(name) {
		return nil, false
	}
	dst, err := c.folders.Open()
	if err != nil {
		return nil, false
	}
	info, err := dst.Stat(name)
	if err != nil {
		c.logger.Debug("catalog: preview stat failed", slog.String("name", name), slog.String("error", err.Error()))
		return nil, false
	}
	key := previewKey{root: dst.Root(), name: name, mod: info.ModTime.UnixNano(), size: info.Size}
	if notes, ok := c.cache.Get(key); ok {
		return cloneNotes(notes), true
	}

	data, err := dst.Read(name)
	if err != nil {
		c.logger.Warn("catalog: preview read failed", slog.String("name", name), slog.String("error", err.Error()))
		return nil, false
	}
	notes, err := models.DecodeNotes(data)
	if err != nil {
		c.logger.Warn("catalog: preview decode failed", slog.String("name", name), slog.String("error", err.Error()))
		return nil, false
	}
	c.cache.Add(key, notes)
	return cloneNotes(notes), true
}

// Restore reads a snapshot for restoring into the store.
func (c *Catalog) Restore(name string) ([]models.Note, error) {
	notes, ok := c.Preview(name)
	if !ok {
		if _, err := c.folders.Open(); err != nil {
			return nil, fmt.Errorf("catalog: restore: %w", err)
		}
		return nil, fmt.Errorf("catalog: restore %s: %w", name, apperr.ErrNotFound)
	}
	return notes, nil
}

// files lists snapshot files and returns the folder they came from.
func (c *Catalog) files() ([]storage.FileInfo, storage.Provider, error) {
	dst, err := c.folders.Open()
	if err != nil {
		if !errors.Is(err, apperr.ErrNoFolder) {
			c.logger.Warn("catalog: folder unavailable", slog.String("error", err.Error()))
		}
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	files, err := dst.List(backup.Prefix, "."+c.ext)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	return files, dst, nil
}

func cloneNotes(in []models.Note) []models.Note {
	out := make([]models.Note, len(in))
	for i, n := range in {
		out[i] = n.WithID(n.ID)
	}
	return out
}
