// Package models defines the domain types for Stickies.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/apperr"
)

// UntitledNote is shown when a note has no title.
const UntitledNote = "Untitled Note"

// DefaultNoteText is the body of a freshly created note.
const DefaultNoteText = "NEW NOTE"

// Note is one user document. ID is assigned at creation and never reassigned.
type Note struct {
	ID       uuid.UUID `json:"id"`
	Text     RichText  `json:"text"`
	Title    *string   `json:"title,omitempty"`
	Language Language  `json:"language"`
}

// NewNote returns a note with a fresh id.
func NewNote(text string, title *string) Note {
	return Note{ID: uuid.New(), Text: PlainText(text), Title: title}
}

// DisplayTitle returns the title or UntitledNote when absent.
func (n Note) DisplayTitle() string {
	if n.Title == nil || strings.TrimSpace(*n.Title) == "" {
		return UntitledNote
	}
	return *n.Title
}

// WithID returns a copy of n carrying id. Title, text and language are preserved.
func (n Note) WithID(id uuid.UUID) Note {
	n.ID = id
	n.Text = n.Text.Clone()
	if n.Title != nil {
		t := *n.Title
		n.Title = &t
	}
	return n
}

// Equal reports whether two notes carry the same identity and content.
func (n Note) Equal(o Note) bool {
	if n.ID != o.ID || n.Language != o.Language || !n.Text.Equal(o.Text) {
		return false
	}
	switch {
	case n.Title == nil && o.Title == nil:
		return true
	case n.Title == nil || o.Title == nil:
		return false
	default:
		return *n.Title == *o.Title
	}
}

// Title is a helper for building optional titles.
func Title(s string) *string {
	return &s
}

// Span is a run of text with cosmetic attributes.
type Span struct {
	Text      string  `json:"text"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	PointSize float64 `json:"size,omitempty"`
}

// RichText is styled note content. Attributes never affect identity.
type RichText []Span

// PlainText wraps s in a single unstyled span.
func PlainText(s string) RichText {
	if s == "" {
		return nil
	}
	return RichText{{Text: s}}
}

// String returns the text without attributes.
func (r RichText) String() string {
	var b strings.Builder
	for _, s := range r {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Clone returns an independent copy.
func (r RichText) Clone() RichText {
	if len(r) == 0 {
		return nil
	}
	out := make(RichText, len(r))
	copy(out, r)
	return out
}

// Equal compares spans; nil and empty are equal.
func (r RichText) Equal(o RichText) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}

// MarshalJSON always emits the span list.
func (r RichText) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Span(r))
}

// UnmarshalJSON accepts the span list or a plain string.
func (r *RichText) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = PlainText(s)
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		*r = nil
		return nil
	}
	var spans []Span
	if err := json.Unmarshal(trimmed, &spans); err != nil {
		return err
	}
	if len(spans) == 0 {
		*r = nil
		return nil
	}
	*r = spans
	return nil
}

// EncodeNotes serializes a note collection as a JSON array.
func EncodeNotes(notes []Note, pretty bool) ([]byte, error) {
	if notes == nil {
		notes = []Note{}
	}
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(notes, "", "  ")
	} else {
		data, err = json.Marshal(notes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEncode, err)
	}
	return data, nil
}

// DecodeNotes parses a JSON array of notes.
func DecodeNotes(data []byte) ([]Note, error) {
	var notes []Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}
