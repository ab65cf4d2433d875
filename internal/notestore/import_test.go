package notestore

import (
	"testing"

	"github.com/starford/stickies/internal/models"
)

// existing {A(1), B(2)}, incoming [{1,"X"}, {3,"Y"}]
func importFixture(t *testing.T) (*Store, []models.Note) {
	t.Helper()
	s, _ := testStore(t, note(idN(1), "A"), note(idN(2), "B"))
	return s, []models.Note{note(idN(1), "X"), note(idN(3), "Y")}
}

func texts(notes []models.Note) map[string]models.Note {
	out := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		out[n.Text.String()] = n
	}
	return out
}

func TestImportSkipDuplicates(t *testing.T) {
	s, incoming := importFixture(t)
	plan, err := s.ImportMerge(incoming, SkipDuplicates)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Duplicates != 1 || len(plan.Notes) != 1 {
		t.Errorf("plan = %+v", plan)
	}
	got := s.Notes()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	byText := texts(got)
	if byText["A"].ID != idN(1) || byText["B"].ID != idN(2) || byText["Y"].ID != idN(3) {
		t.Errorf("result = %+v", got)
	}
	if _, ok := byText["X"]; ok {
		t.Error("duplicate X was imported")
	}
}

func TestImportAddAsDuplicates(t *testing.T) {
	s, incoming := importFixture(t)
	if _, err := s.ImportMerge(incoming, AddAsDuplicates); err != nil {
		t.Fatal(err)
	}
	got := s.Notes()
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	byText := texts(got)
	if byText["A"].ID != idN(1) || byText["B"].ID != idN(2) || byText["Y"].ID != idN(3) {
		t.Errorf("result = %+v", got)
	}
	x, ok := byText["X"]
	if !ok {
		t.Fatal("X missing")
	}
	if x.ID == idN(1) || x.ID == idN(2) || x.ID == idN(3) {
		t.Errorf("X kept a colliding id %s", x.ID)
	}
}

func TestImportAddAsDuplicatesKeepsTitle(t *testing.T) {
	s, _ := testStore(t, note(idN(1), "A"))
	in := note(idN(1), "X")
	in.Title = models.Title("Imported")
	in.Language = models.LanguageCypher
	if _, err := s.ImportMerge([]models.Note{in}, AddAsDuplicates); err != nil {
		t.Fatal(err)
	}
	x := texts(s.Notes())["X"]
	if x.DisplayTitle() != "Imported" || x.Language != models.LanguageCypher {
		t.Errorf("content not preserved: %+v", x)
	}
}

func TestImportReplaceExisting(t *testing.T) {
	s, incoming := importFixture(t)
	plan, err := s.ImportMerge(incoming, ReplaceExisting)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Removed != 2 {
		t.Errorf("removed = %d", plan.Removed)
	}
	got := s.Notes()
	if len(got) != 2 || got[0].ID != idN(1) || got[0].Text.String() != "X" ||
		got[1].ID != idN(3) || got[1].Text.String() != "Y" {
		t.Errorf("result = %+v", got)
	}
}

func TestImportCancel(t *testing.T) {
	s, incoming := importFixture(t)
	if _, err := s.ImportMerge(incoming, Cancel); err != nil {
		t.Fatal(err)
	}
	got := s.Notes()
	if len(got) != 2 || got[0].Text.String() != "A" || got[1].Text.String() != "B" {
		t.Errorf("cancel mutated the store: %+v", got)
	}
}

func TestImportDuplicatesWithinBatch(t *testing.T) {
	s, _ := testStore(t)
	batch := []models.Note{note(idN(4), "first"), note(idN(4), "second")}
	if _, err := s.ImportMerge(batch, SkipDuplicates); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestPlanDoesNotMutate(t *testing.T) {
	s, incoming := importFixture(t)
	plan := s.Plan(incoming, SkipDuplicates)
	if got := plan.Summary(); got != "This will import 1 Note(s) (1 Duplicates skipped)" {
		t.Errorf("summary = %q", got)
	}
	if s.Len() != 2 {
		t.Error("Plan mutated the store")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"skip", SkipDuplicates},
		{"add", AddAsDuplicates},
		{"Replace", ReplaceExisting},
		{"cancel", Cancel},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParsePolicy("merge"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
