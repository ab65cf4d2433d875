// Package rewrite applies AI-generated edits to a note as a stream of partial states.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/models"
)

// ErrBusy is returned when a rewrite is already running in the session.
var ErrBusy = errors.New("rewrite: already generating")

// DeltaStream yields text fragments until io.EOF.
type DeltaStream interface {
	Recv() (string, error)
	Close() error
}

// Completer starts a generation for prompt applied to note.
type Completer interface {
	Stream(ctx context.Context, prompt string, note models.Note) (DeltaStream, error)
}

// State of a session.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateFinished   State = "finished"
	StateFailed     State = "failed"
)

// Partial is one intermediate note state. The last value has Done set or Err non-nil.
type Partial struct {
	Note models.Note
	Done bool
	Err  error
}

// Updater persists an edited note.
type Updater interface {
	Update(id uuid.UUID, fn func(*models.Note)) (models.Note, error)
}

// Session tracks one note's rewrite and the text it replaced.
type Session struct {
	completer Completer

	mu       sync.Mutex
	state    State
	lastErr  error
	previous *models.Note
}

// NewSession creates an idle session.
func NewSession(c Completer) *Session {
	return &Session{completer: c, state: StateIdle}
}

// State returns the current state and the error of a failed run.
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// Start snapshots note and streams partial rewrites of it. The channel is
// closed after the final value. Cancelling ctx discards the rest of the stream.
func (s *Session) Start(ctx context.Context, prompt string, note models.Note) (<-chan Partial, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("rewrite: empty prompt")
	}

	s.mu.Lock()
	if s.state == StateGenerating {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	prev := note.WithID(note.ID)
	s.previous = &prev
	s.state, s.lastErr = StateGenerating, nil
	s.mu.Unlock()

	stream, err := s.completer.Stream(ctx, prompt, note)
	if err != nil {
		s.finish(StateFailed, err)
		return nil, err
	}

	out := make(chan Partial)
	go func() {
		defer close(out)
		defer stream.Close()

		var b strings.Builder
		current := note.WithID(note.ID)
		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				s.finish(StateFinished, nil)
				send(ctx, out, Partial{Note: current, Done: true})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					s.finish(StateIdle, nil)
					return
				}
				s.finish(StateFailed, err)
				send(ctx, out, Partial{Note: current, Err: err})
				return
			}
			b.WriteString(delta)
			current = current.WithID(note.ID)
			current.Text = models.PlainText(b.String())
			if !send(ctx, out, Partial{Note: current}) {
				s.finish(StateIdle, nil)
				return
			}
		}
	}()
	return out, nil
}

// Revert returns the note as it was before the last Start.
func (s *Session) Revert() (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previous == nil {
		return models.Note{}, false
	}
	return s.previous.WithID(s.previous.ID), true
}

// Apply writes n's text through u.
func Apply(u Updater, n models.Note) (models.Note, error) {
	return u.Update(n.ID, func(cur *models.Note) {
		cur.Text = n.Text.Clone()
	})
}

func (s *Session) finish(st State, err error) {
	s.mu.Lock()
	s.state, s.lastErr = st, err
	s.mu.Unlock()
}

func send(ctx context.Context, out chan<- Partial, p Partial) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}
