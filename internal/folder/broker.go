// Package folder remembers the user-chosen backup folder across launches.
//
// The saved token is only trusted while the folder still exists, still holds
// the marker written when it was chosen, and is writable. Anything else is
// reported as "no folder" so callers can ask the user again.
package folder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/storage"
)

// MarkerName is the file placed in the chosen folder to detect moves and replacements.
const MarkerName = ".stickies-folder"

// renewAfter bounds how often a successful Resolve rewrites the token.
const renewAfter = time.Minute

// Selector asks the user for a folder. ok is false when the dialog was cancelled.
type Selector interface {
	SelectFolder(ctx context.Context) (path string, ok bool, err error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context) (string, bool, error)

func (f SelectorFunc) SelectFolder(ctx context.Context) (string, bool, error) { return f(ctx) }

// Token is the persisted capability for the chosen folder.
type Token struct {
	ID       uuid.UUID `json:"id"`
	Path     string    `json:"path"`
	Created  time.Time `json:"created"`
	Resolved time.Time `json:"resolved,omitempty"`
}

// Broker persists and resolves the backup folder token.
type Broker struct {
	mu     sync.Mutex
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewBroker creates a broker over the shared kv store.
func NewBroker(store kv.Store, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{kv: store, logger: logger, now: time.Now}
}

// Persist makes path the backup folder, replacing any previous token.
func (b *Broker) Persist(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("folder: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("folder: stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder: %s is not a directory", abs)
	}
	if err := writable(abs); err != nil {
		return fmt.Errorf("folder: %s: %w", abs, apperr.ErrAccess)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, hadPrev, _ := b.load()
	tok := Token{ID: uuid.New(), Path: abs, Created: b.now()}
	if err := os.WriteFile(filepath.Join(abs, MarkerName), []byte(tok.ID.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("folder: write marker: %w", err)
	}
	if err := b.save(tok); err != nil {
		return err
	}
	if hadPrev && prev.Path != abs {
		if err := os.Remove(filepath.Join(prev.Path, MarkerName)); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("folder: remove previous marker failed",
				slog.String("path", prev.Path), slog.String("error", err.Error()))
		}
	}
	b.logger.Info("folder: selected", slog.String("path", abs))
	return nil
}

// Resolve returns the saved folder path. ok is false when nothing was saved
// or the saved token is stale or no longer grants write access.
// A successful resolution renews the token.
func (b *Broker) Resolve() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tok, ok, err := b.load()
	if err != nil {
		b.logger.Warn("folder: saved token unreadable", slog.String("error", err.Error()))
		return "", false
	}
	if !ok {
		return "", false
	}
	if err := b.check(tok); err != nil {
		b.logger.Warn("folder: saved folder unusable",
			slog.String("path", tok.Path), slog.String("error", err.Error()))
		return "", false
	}

	if now := b.now(); now.Sub(tok.Resolved) >= renewAfter {
		tok.Resolved = now
		if err := b.save(tok); err != nil {
			b.logger.Warn("folder: renew token failed", slog.String("error", err.Error()))
		}
	}
	return tok.Path, true
}

// Open resolves the folder and returns a file provider rooted at it.
func (b *Broker) Open() (storage.Provider, error) {
	path, ok := b.Resolve()
	if !ok {
		return nil, apperr.ErrNoFolder
	}
	fs, err := storage.NewFS(path)
	if err != nil {
		return nil, fmt.Errorf("folder: open: %w: %w", apperr.ErrAccess, err)
	}
	return fs, nil
}

// Pick asks sel for a folder and persists it. ok is false when the user cancelled.
func (b *Broker) Pick(ctx context.Context, sel Selector) (string, bool, error) {
	path, ok, err := sel.SelectFolder(ctx)
	if err != nil {
		return "", false, fmt.Errorf("folder: select: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	if err := b.Persist(path); err != nil {
		return "", false, err
	}
	abs, _ := filepath.Abs(path)
	return abs, true, nil
}

// Clear forgets the saved folder.
func (b *Broker) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tok, ok, _ := b.load()
	if err := b.kv.Delete(kv.KeyFolderBookmark); err != nil {
		return fmt.Errorf("folder: clear: %w", err)
	}
	if ok {
		_ = os.Remove(filepath.Join(tok.Path, MarkerName))
	}
	return nil
}

func (b *Broker) check(tok Token) error {
	info, err := os.Stat(tok.Path)
	if err != nil {
		return fmt.Errorf("stale: %w", apperr.ErrAccess)
	}
	if !info.IsDir() {
		return fmt.Errorf("stale: not a directory: %w", apperr.ErrAccess)
	}
	marker, err := os.ReadFile(filepath.Join(tok.Path, MarkerName))
	if err != nil {
		return fmt.Errorf("stale: marker missing: %w", apperr.ErrAccess)
	}
	if strings.TrimSpace(string(marker)) != tok.ID.String() {
		return fmt.Errorf("stale: folder replaced: %w", apperr.ErrAccess)
	}
	if err := writable(tok.Path); err != nil {
		return fmt.Errorf("not writable: %w", apperr.ErrAccess)
	}
	return nil
}

func (b *Broker) load() (Token, bool, error) {
	data, ok, err := b.kv.Get(kv.KeyFolderBookmark)
	if err != nil || !ok {
		return Token{}, false, err
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false, fmt.Errorf("folder: %w: %w", apperr.ErrDecode, err)
	}
	if tok.Path == "" || tok.ID == uuid.Nil {
		return Token{}, false, fmt.Errorf("folder: empty token: %w", apperr.ErrDecode)
	}
	return tok, true, nil
}

func (b *Broker) save(tok Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("folder: %w: %w", apperr.ErrEncode, err)
	}
	if err := b.kv.Set(kv.KeyFolderBookmark, data); err != nil {
		return fmt.Errorf("folder: save token: %w", err)
	}
	return nil
}

func writable(path string) error {
	return unix.Access(path, unix.W_OK)
}
