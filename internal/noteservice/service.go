// Package noteservice coordinates the note store, backup folder, catalog and
// scheduler for the HTTP and MCP surfaces.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/backup"
	"github.com/starford/stickies/internal/catalog"
	"github.com/starford/stickies/internal/checksum"
	"github.com/starford/stickies/internal/folder"
	"github.com/starford/stickies/internal/models"
	"github.com/starford/stickies/internal/notestore"
	"github.com/starford/stickies/internal/parser"
	"github.com/starford/stickies/internal/rewrite"
	"github.com/starford/stickies/internal/scheduler"
)

// ErrRewriteUnavailable is returned when no completion backend is configured.
var ErrRewriteUnavailable = errors.New("rewrite unavailable")

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID           uuid.UUID       `json:"id"`
	Title        *string         `json:"title"`
	DisplayTitle string          `json:"display_title"`
	Text         string          `json:"text"`
	Spans        models.RichText `json:"spans"`
	Language     string          `json:"language"`
	Checksum     string          `json:"checksum"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Language string    `json:"language"`
	Preview  string    `json:"preview"`
	Checksum string    `json:"checksum"`
}

// NoteInput carries the editable fields. Nil fields are left unchanged;
// an empty Title clears the title.
type NoteInput struct {
	Title    *string `json:"title"`
	Text     *string `json:"text"`
	Language *string `json:"language"`
}

// BackupPreview is a decoded snapshot with its search metadata.
type BackupPreview struct {
	Name     string          `json:"name"`
	Metadata parser.Metadata `json:"metadata"`
	Notes    []NoteListItem  `json:"notes"`
}

// Publisher receives scheduler state changes.
type Publisher interface {
	PublishScheduler(state any)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Notes     *notestore.Store
	Folders   *folder.Broker
	Catalog   *catalog.Catalog
	Runner    *backup.Runner
	Scheduler *scheduler.Scheduler
	Completer rewrite.Completer
	Events    Publisher
	Logger    *slog.Logger
}

// Service is the application facade.
type Service struct {
	Deps

	mu       sync.Mutex
	sessions map[uuid.UUID]*rewrite.Session
}

// NewService creates a new note service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{Deps: d, sessions: make(map[uuid.UUID]*rewrite.Session)}
}

// ListNotes returns every note in store order.
func (s *Service) ListNotes(_ context.Context) []NoteListItem {
	notes := s.Notes.Notes()
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = listItem(n)
	}
	return items
}

// SearchNotes returns notes whose title or text contains query, ignoring
// case. limit <= 0 means no limit.
func (s *Service) SearchNotes(_ context.Context, query string, limit int) []NoteListItem {
	q := strings.ToLower(strings.TrimSpace(query))
	items := []NoteListItem{}
	for _, n := range s.Notes.Notes() {
		if limit > 0 && len(items) >= limit {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(n.DisplayTitle()), q) ||
			strings.Contains(strings.ToLower(n.Text.String()), q) {
			items = append(items, listItem(n))
		}
	}
	return items
}

// GetNote returns a single note.
func (s *Service) GetNote(_ context.Context, id uuid.UUID) (*NoteDetail, error) {
	n, err := s.Notes.Get(id)
	if err != nil {
		return nil, err
	}
	return detail(n), nil
}

// CreateNote adds a note. An empty text gets the default body.
func (s *Service) CreateNote(_ context.Context, in NoteInput) (*NoteDetail, error) {
	text := models.DefaultNoteText
	if in.Text != nil && *in.Text != "" {
		text = *in.Text
	}
	n := models.NewNote(text, nil)
	if err := applyInput(&n, in); err != nil {
		return nil, err
	}
	if err := s.Notes.Append(n); err != nil {
		return nil, err
	}
	return detail(n), nil
}

// UpdateNote edits a note. A non-empty ifMatch must name the current checksum.
func (s *Service) UpdateNote(_ context.Context, id uuid.UUID, in NoteInput, ifMatch string) (*NoteDetail, error) {
	n, err := s.Notes.UpdateChecked(id, func(cur *models.Note) error {
		if !checksum.Match(*cur, ifMatch) {
			return apperr.ErrConflict
		}
		return applyInput(cur, in)
	})
	if err != nil {
		return nil, err
	}
	return detail(n), nil
}

// DeleteNote removes a note. Deleting an absent note succeeds.
func (s *Service) DeleteNote(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return s.Notes.Delete(id)
}

// ClearAll removes every note.
func (s *Service) ClearAll(_ context.Context) error {
	return s.Notes.ReplaceAll(nil)
}

// Import parses an import file and merges it. With dryRun the plan is
// returned without applying it.
func (s *Service) Import(_ context.Context, name string, data []byte, policy notestore.Policy, dryRun bool) (notestore.ImportPlan, error) {
	incoming, err := parser.ParseImport(name, data)
	if err != nil {
		return notestore.ImportPlan{}, err
	}
	if dryRun {
		return s.Notes.Plan(incoming, policy), nil
	}
	plan, err := s.Notes.ImportMerge(incoming, policy)
	if err != nil {
		return notestore.ImportPlan{}, err
	}
	s.Logger.Info("noteservice: imported",
		slog.String("policy", policy.String()), slog.Int("notes", len(plan.Notes)), slog.Int("duplicates", plan.Duplicates))
	return plan, nil
}

// Export returns all notes (or one when id is set) as pretty JSON plus a file name.
func (s *Service) Export(_ context.Context, id uuid.UUID) ([]byte, string, error) {
	var (
		data []byte
		err  error
	)
	if id == uuid.Nil {
		data, err = s.Notes.Export()
	} else {
		data, err = s.Notes.ExportNote(id)
	}
	if err != nil {
		return nil, "", err
	}
	return data, notestore.ExportFilename(time.Now(), s.Runner.Writer.Ext), nil
}

// CreateBackup writes one snapshot now.
func (s *Service) CreateBackup(ctx context.Context) (string, error) {
	return s.Runner.RunOnce(ctx)
}

// Backups lists snapshots, newest first.
func (s *Service) Backups(_ context.Context) ([]catalog.Entry, error) {
	return s.Catalog.Entries()
}

// PreviewBackup decodes a snapshot.
func (s *Service) PreviewBackup(_ context.Context, name string) (*BackupPreview, error) {
	notes, err := s.Catalog.Restore(name)
	if err != nil {
		return nil, err
	}
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = listItem(n)
	}
	return &BackupPreview{Name: name, Metadata: parser.Describe(name, notes), Notes: items}, nil
}

// RestoreBackup replaces the current notes with a snapshot.
func (s *Service) RestoreBackup(_ context.Context, name string) (int, error) {
	notes, err := s.Catalog.Restore(name)
	if err != nil {
		return 0, err
	}
	if err := s.Notes.ReplaceAll(notes); err != nil {
		return 0, err
	}
	s.Logger.Info("noteservice: restored", slog.String("name", name), slog.Int("notes", len(notes)))
	return len(notes), nil
}

// DeleteBackups removes snapshots; see catalog.Catalog.Delete.
func (s *Service) DeleteBackups(_ context.Context, names []string) error {
	return s.Catalog.Delete(names)
}

// Folder returns the resolved backup folder.
func (s *Service) Folder(_ context.Context) (string, bool) {
	return s.Folders.Resolve()
}

// SetFolder selects the backup folder.
func (s *Service) SetFolder(_ context.Context, path string) error {
	return s.Folders.Persist(path)
}

// ClearFolder forgets the backup folder.
func (s *Service) ClearFolder(_ context.Context) error {
	return s.Folders.Clear()
}

// SchedulerState reconciles and returns the scheduler state.
func (s *Service) SchedulerState(ctx context.Context) (scheduler.State, error) {
	return s.Scheduler.Reconcile(ctx)
}

// EnableScheduler turns auto-backup on.
func (s *Service) EnableScheduler(ctx context.Context) (scheduler.State, error) {
	return s.published(s.Scheduler.Enable(ctx))
}

// DisableScheduler turns auto-backup off.
func (s *Service) DisableScheduler(ctx context.Context) (scheduler.State, error) {
	return s.published(s.Scheduler.Disable(ctx))
}

// SetInterval changes the auto-backup interval.
func (s *Service) SetInterval(ctx context.Context, d time.Duration) (scheduler.State, error) {
	return s.published(s.Scheduler.SetInterval(ctx, d))
}

func (s *Service) published(st scheduler.State, err error) (scheduler.State, error) {
	if s.Events != nil {
		s.Events.PublishScheduler(st)
	}
	return st, err
}

// StartRewrite streams AI edits of a note. The final text is saved when the
// stream completes; Revert restores the text from before the rewrite.
func (s *Service) StartRewrite(ctx context.Context, id uuid.UUID, prompt string) (<-chan rewrite.Partial, error) {
	if s.Completer == nil {
		return nil, ErrRewriteUnavailable
	}
	n, err := s.Notes.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = rewrite.NewSession(s.Completer)
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	in, err := sess.Start(ctx, prompt, n)
	if err != nil {
		return nil, err
	}
	out := make(chan rewrite.Partial)
	go func() {
		defer close(out)
		for p := range in {
			if p.Done {
				if _, err := rewrite.Apply(s.Notes, p.Note); err != nil {
					s.Logger.Error("noteservice: save rewrite failed", slog.String("error", err.Error()))
					p.Err = err
				}
			}
			select {
			case out <- p:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// RevertRewrite restores the text a note had before its last rewrite.
func (s *Service) RevertRewrite(_ context.Context, id uuid.UUID) (*NoteDetail, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("noteservice: no rewrite for %s: %w", id, apperr.ErrNotFound)
	}
	prev, ok := sess.Revert()
	if !ok {
		return nil, fmt.Errorf("noteservice: no rewrite for %s: %w", id, apperr.ErrNotFound)
	}
	n, err := rewrite.Apply(s.Notes, prev)
	if err != nil {
		return nil, err
	}
	return detail(n), nil
}

func applyInput(n *models.Note, in NoteInput) error {
	if in.Title != nil {
		if *in.Title == "" {
			n.Title = nil
		} else {
			n.Title = models.Title(*in.Title)
		}
	}
	if in.Text != nil {
		n.Text = models.PlainText(*in.Text)
	}
	if in.Language != nil {
		lang, ok := models.ParseLanguage(*in.Language)
		if !ok {
			return fmt.Errorf("unknown language %q: %w", *in.Language, apperr.ErrInvalid)
		}
		n.Language = lang
	}
	return nil
}

func detail(n models.Note) *NoteDetail {
	return &NoteDetail{
		ID:           n.ID,
		Title:        n.Title,
		DisplayTitle: n.DisplayTitle(),
		Text:         n.Text.String(),
		Spans:        n.Text,
		Language:     n.Language.Name(),
		Checksum:     checksum.Note(n),
	}
}

func listItem(n models.Note) NoteListItem {
	preview := strings.TrimSpace(n.Text.String())
	if r := []rune(preview); len(r) > 80 {
		preview = string(r[:80])
	}
	return NoteListItem{
		ID:       n.ID,
		Title:    n.DisplayTitle(),
		Language: n.Language.Name(),
		Preview:  preview,
		Checksum: checksum.Note(n),
	}
}
