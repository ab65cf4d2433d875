package checksum

import (
	"testing"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/models"
)

func TestNoteChangesWithContent(t *testing.T) {
	n := models.Note{ID: uuid.New(), Text: models.PlainText("fn main()")}
	a := Note(n)
	if len(a) != 32 {
		t.Fatalf("tag length = %d", len(a))
	}
	if Note(n) != a {
		t.Error("tag is not stable")
	}
	n.Language = models.LanguageSwift
	if Note(n) == a {
		t.Error("language change kept the tag")
	}
}

func TestMatch(t *testing.T) {
	n := models.Note{ID: uuid.New(), Text: models.PlainText("x")}
	tag := Note(n)
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"*", true},
		{tag, true},
		{`"` + tag + `"`, true},
		{`W/"` + tag + `"`, true},
		{"deadbeef", false},
	}
	for _, tt := range tests {
		if got := Match(n, tt.in); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
