// Package notestore owns the authoritative ordered collection of notes.
//
// Every mutation re-encodes the whole collection and writes it to durable
// storage before returning. A failed write rolls the in-memory state back.
package notestore

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/models"
)

// ChangeKind describes a store mutation.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeReplaced ChangeKind = "replaced"
)

// ChangeFunc is called after a mutation has been persisted.
// id is uuid.Nil for bulk changes.
type ChangeFunc func(kind ChangeKind, id uuid.UUID)

// Store is the process-wide note collection.
type Store struct {
	mu       sync.Mutex
	kv       kv.Store
	notes    []models.Note
	logger   *slog.Logger
	onChange []ChangeFunc
}

// New loads the collection from kv. Missing or corrupt data yields an empty store.
func New(store kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: store, logger: logger, notes: []models.Note{}}

	data, ok, err := store.Get(kv.KeyNotes)
	switch {
	case err != nil:
		logger.Warn("notestore: load failed, starting empty", slog.String("error", err.Error()))
	case !ok:
		logger.Debug("notestore: no saved notes")
	default:
		notes, err := models.DecodeNotes(data)
		if err != nil {
			logger.Warn("notestore: saved notes unreadable, starting empty", slog.String("error", err.Error()))
			break
		}
		s.notes = dedupe(notes)
		logger.Info("notestore: loaded", slog.Int("count", len(s.notes)))
	}
	return s
}

// OnChange registers fn to be called after every persisted mutation.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Notes returns a copy of the collection in insertion order.
func (s *Store) Notes() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneNotes(s.notes)
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// Get returns the note with id.
func (s *Store) Get(id uuid.UUID) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.notes, id)
	if i < 0 {
		return models.Note{}, apperr.ErrNotFound
	}
	return s.notes[i].WithID(id), nil
}

// Create appends a new note with a fresh id and the default body.
func (s *Store) Create(title *string) (models.Note, error) {
	n := models.NewNote(models.DefaultNoteText, title)
	if err := s.Append(n); err != nil {
		return models.Note{}, err
	}
	return n, nil
}

// Append adds note. A colliding id is rejected with ErrAlreadyExists.
func (s *Store) Append(note models.Note) error {
	if note.ID == uuid.Nil {
		return fmt.Errorf("notestore: append: empty id")
	}
	_, err := s.mutate(func(cur []models.Note) ([]models.Note, ChangeKind, uuid.UUID, error) {
		if indexOf(cur, note.ID) >= 0 {
			return nil, "", uuid.Nil, fmt.Errorf("notestore: append %s: %w", note.ID, apperr.ErrAlreadyExists)
		}
		return append(cur, note.WithID(note.ID)), ChangeCreated, note.ID, nil
	})
	return err
}

// Update applies fn to the note with id and persists. The id cannot be changed by fn.
func (s *Store) Update(id uuid.UUID, fn func(*models.Note)) (models.Note, error) {
	return s.UpdateChecked(id, func(n *models.Note) error {
		fn(n)
		return nil
	})
}

// UpdateChecked is Update with a callback that may veto the change.
// When fn returns an error nothing is persisted and the error is returned.
func (s *Store) UpdateChecked(id uuid.UUID, fn func(*models.Note) error) (models.Note, error) {
	next, err := s.mutate(func(cur []models.Note) ([]models.Note, ChangeKind, uuid.UUID, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, "", uuid.Nil, fmt.Errorf("notestore: update %s: %w", id, apperr.ErrNotFound)
		}
		if err := fn(&cur[i]); err != nil {
			return nil, "", uuid.Nil, err
		}
		cur[i].ID = id
		return cur, ChangeUpdated, id, nil
	})
	if err != nil {
		return models.Note{}, err
	}
	return next[indexOf(next, id)].WithID(id), nil
}

// Delete removes the note with id. Deleting an absent id is a no-op.
func (s *Store) Delete(id uuid.UUID) error {
	_, err := s.mutate(func(cur []models.Note) ([]models.Note, ChangeKind, uuid.UUID, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, "", uuid.Nil, nil
		}
		return slices.Delete(cur, i, i+1), ChangeDeleted, id, nil
	})
	return err
}

// ReplaceAll swaps the whole collection; used by restore and clear all.
// Later duplicates of an id are dropped.
func (s *Store) ReplaceAll(notes []models.Note) error {
	_, err := s.mutate(func([]models.Note) ([]models.Note, ChangeKind, uuid.UUID, error) {
		return dedupe(cloneNotes(notes)), ChangeReplaced, uuid.Nil, nil
	})
	return err
}

// mutateFunc receives a private copy of the collection. Returning a nil slice
// with a nil error means nothing changed.
type mutateFunc func(cur []models.Note) ([]models.Note, ChangeKind, uuid.UUID, error)

// mutate runs fn under the lock, persists the result and notifies listeners
// once the lock is released. It returns a copy of the committed collection.
func (s *Store) mutate(fn mutateFunc) ([]models.Note, error) {
	s.mu.Lock()
	next, kind, id, err := fn(cloneNotes(s.notes))
	if err != nil || next == nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	listeners := slices.Clone(s.onChange)
	out := cloneNotes(next)
	s.mu.Unlock()

	for _, l := range listeners {
		l(kind, id)
	}
	return out, nil
}

// commit persists next and installs it. Caller holds s.mu.
func (s *Store) commit(next []models.Note) error {
	data, err := models.EncodeNotes(next, false)
	if err != nil {
		s.logger.Error("notestore: encode failed", slog.String("error", err.Error()))
		return fmt.Errorf("notestore: persist: %w", err)
	}
	if err := s.kv.Set(kv.KeyNotes, data); err != nil {
		s.logger.Error("notestore: write failed", slog.String("error", err.Error()))
		return fmt.Errorf("notestore: persist: %w", err)
	}
	s.notes = next
	return nil
}

func indexOf(notes []models.Note, id uuid.UUID) int {
	return slices.IndexFunc(notes, func(n models.Note) bool { return n.ID == id })
}

func cloneNotes(in []models.Note) []models.Note {
	out := make([]models.Note, len(in))
	for i, n := range in {
		out[i] = n.WithID(n.ID)
	}
	return out
}

func dedupe(notes []models.Note) []models.Note {
	seen := make(map[uuid.UUID]struct{}, len(notes))
	out := notes[:0]
	for _, n := range notes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
