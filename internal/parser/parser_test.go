package parser

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - stickies\n---\n# Hello\nBody text.\n")
	r := Parse(input)
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "stickies" {
		t.Errorf("tags = %v, want [go stickies]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestMarkdownNote(t *testing.T) {
	n := MarkdownNote([]byte("---\ntitle: Query\nlanguage: sqlite\n---\nSELECT 1;\n"))
	if n.DisplayTitle() != "Query" || n.Language != models.LanguageSQLite {
		t.Errorf("note = %+v", n)
	}
	if n.Text.String() != "SELECT 1;\n" {
		t.Errorf("text = %q", n.Text.String())
	}
	if n.ID == uuid.Nil {
		t.Error("no id assigned")
	}

	plain := MarkdownNote([]byte("just text"))
	if plain.Title != nil || plain.Language != models.LanguageNone {
		t.Errorf("plain = %+v", plain)
	}
}

func TestParseImport(t *testing.T) {
	data, _ := models.EncodeNotes([]models.Note{models.NewNote("a", nil), models.NewNote("b", nil)}, true)
	notes, err := ParseImport("Stickies_Export_2024-01-01.stickies", data)
	if err != nil || len(notes) != 2 {
		t.Fatalf("ParseImport = %v, %v", notes, err)
	}

	notes, err = ParseImport("todo.md", []byte("# Todo\n- milk"))
	if err != nil || len(notes) != 1 || notes[0].DisplayTitle() != "Todo" {
		t.Errorf("markdown import = %+v, %v", notes, err)
	}

	if _, err := ParseImport("broken.stickies", []byte("{")); !errors.Is(err, apperr.ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestDescribe(t *testing.T) {
	notes := []models.Note{
		{ID: uuid.New(), Text: models.PlainText("main = print 1 #haskell"), Title: models.Title("Main"), Language: models.LanguageHaskell},
		{ID: uuid.New(), Text: models.PlainText("no title"), Language: models.LanguageHaskell},
		{ID: uuid.New(), Text: models.PlainText("x"), Title: models.Title("Main")},
	}
	md := Describe("/tmp/backup_2024-01-01_00-00-00.stickies", notes)
	if md.Title != "backup_2024-01-01_00-00-00.stickies" || md.Notes != 3 {
		t.Errorf("metadata = %+v", md)
	}
	want := []string{"Main", "Haskell", "Text", "haskell"}
	if !slices.Equal(md.Keywords, want) {
		t.Errorf("keywords = %v, want %v", md.Keywords, want)
	}
}
