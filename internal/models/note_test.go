package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/apperr"
)

func TestRoundTripAllLanguages(t *testing.T) {
	var notes []Note
	for _, lang := range Languages() {
		n := NewNote("body "+lang.Name(), Title("t-"+lang.Name()))
		n.Language = lang
		notes = append(notes, n)
	}
	// Styled spans and a missing title.
	notes = append(notes, Note{
		ID:   uuid.New(),
		Text: RichText{{Text: "bold", Bold: true, PointSize: 18}, {Text: " plain"}, {Text: " it", Italic: true}},
	})

	for _, pretty := range []bool{true, false} {
		data, err := EncodeNotes(notes, pretty)
		if err != nil {
			t.Fatalf("EncodeNotes: %v", err)
		}
		got, err := DecodeNotes(data)
		if err != nil {
			t.Fatalf("DecodeNotes: %v", err)
		}
		if len(got) != len(notes) {
			t.Fatalf("len = %d, want %d", len(got), len(notes))
		}
		for i := range notes {
			if !got[i].Equal(notes[i]) {
				t.Errorf("note %d mismatch:\n got %+v\nwant %+v", i, got[i], notes[i])
			}
		}
	}
}

func TestUnknownLanguageFallsBackToNone(t *testing.T) {
	id := uuid.New()
	cases := []string{
		`{"kind":42}`,
		`{"kind":-1}`,
		`{"kind":"swift"}`,
		`"haskell"`,
		`{}`,
	}
	for _, lang := range cases {
		data := `[{"id":"` + id.String() + `","text":"x","language":` + lang + `}]`
		notes, err := DecodeNotes([]byte(data))
		if err != nil {
			t.Fatalf("language %s: unexpected error %v", lang, err)
		}
		if notes[0].Language != LanguageNone {
			t.Errorf("language %s decoded as %v, want None", lang, notes[0].Language)
		}
	}
}

func TestLanguageEncodesAsCode(t *testing.T) {
	n := NewNote("x", nil)
	n.Language = LanguageSQLite
	data, err := EncodeNotes([]Note{n}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"language":{"kind":5}`) {
		t.Errorf("language not encoded as code: %s", data)
	}
}

func TestPlainStringText(t *testing.T) {
	id := uuid.New()
	notes, err := DecodeNotes([]byte(`[{"id":"` + id.String() + `","text":"hello","language":{"kind":6}}]`))
	if err != nil {
		t.Fatal(err)
	}
	if notes[0].Text.String() != "hello" {
		t.Errorf("text = %q", notes[0].Text.String())
	}
	if notes[0].Language != LanguageSwift {
		t.Errorf("language = %v", notes[0].Language)
	}
	if notes[0].DisplayTitle() != UntitledNote {
		t.Errorf("display title = %q", notes[0].DisplayTitle())
	}
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := DecodeNotes([]byte(`{not json`))
	if !errors.Is(err, apperr.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestWithIDDetachesIdentity(t *testing.T) {
	n := NewNote("content", Title("keep"))
	dup := n.WithID(uuid.New())
	if dup.ID == n.ID {
		t.Fatal("id not replaced")
	}
	if dup.DisplayTitle() != "keep" || dup.Text.String() != "content" {
		t.Errorf("content not preserved: %+v", dup)
	}
	*dup.Title = "changed"
	if *n.Title != "keep" {
		t.Error("title shared between copies")
	}
}

func TestParseLanguage(t *testing.T) {
	if l, ok := ParseLanguage("haskell"); !ok || l != LanguageHaskell {
		t.Errorf("ParseLanguage(haskell) = %v, %v", l, ok)
	}
	if _, ok := ParseLanguage("cobol"); ok {
		t.Error("cobol should not parse")
	}
}
