package notestore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/models"
)

// Policy selects how imported notes are merged with the existing collection.
// Duplicate detection is by note id.
type Policy int

const (
	// Cancel leaves the store untouched.
	Cancel Policy = iota
	// AddAsDuplicates imports everything; colliding notes get a fresh id.
	AddAsDuplicates
	// SkipDuplicates drops incoming notes whose id already exists.
	SkipDuplicates
	// ReplaceExisting replaces the whole store with the incoming set.
	ReplaceExisting
)

var policyNames = map[Policy]string{
	Cancel:          "cancel",
	AddAsDuplicates: "add",
	SkipDuplicates:  "skip",
	ReplaceExisting: "replace",
}

func (p Policy) String() string {
	if n, ok := policyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts the short names used by the CLI and HTTP API.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancel":
		return Cancel, nil
	case "add", "add-duplicates", "duplicates":
		return AddAsDuplicates, nil
	case "skip", "skip-duplicates":
		return SkipDuplicates, nil
	case "replace", "replace-existing":
		return ReplaceExisting, nil
	}
	return Cancel, fmt.Errorf("notestore: unknown import policy %q", s)
}

// ImportPlan is the computed effect of an import, shown to the user before applying.
type ImportPlan struct {
	Policy Policy
	// Notes is what will be appended (or the full replacement set).
	Notes []models.Note
	// Duplicates counts incoming notes whose id collided.
	Duplicates int
	// Removed counts existing notes dropped by ReplaceExisting.
	Removed int
}

// Summary renders the confirmation text for the plan.
func (p ImportPlan) Summary() string {
	switch p.Policy {
	case SkipDuplicates:
		return fmt.Sprintf("This will import %d Note(s) (%d Duplicates skipped)", len(p.Notes), p.Duplicates)
	case AddAsDuplicates:
		return fmt.Sprintf("This will import %d Note(s)", len(p.Notes))
	case ReplaceExisting:
		return fmt.Sprintf("This will remove your current Notes and import %d new Note(s)", len(p.Notes))
	default:
		return "Import cancelled"
	}
}

// Plan computes the effect of importing incoming under policy without mutating.
func (s *Store) Plan(incoming []models.Note, policy Policy) ImportPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return plan(s.notes, incoming, policy)
}

// ImportMerge applies incoming under policy. Confirmation is the caller's concern;
// the store executes immediately.
func (s *Store) ImportMerge(incoming []models.Note, policy Policy) (ImportPlan, error) {
	var result ImportPlan
	_, err := s.mutate(func(cur []models.Note) ([]models.Note, ChangeKind, uuid.UUID, error) {
		result = plan(cur, incoming, policy)
		switch policy {
		case AddAsDuplicates, SkipDuplicates:
			if len(result.Notes) == 0 {
				return nil, "", uuid.Nil, nil
			}
			return append(cur, cloneNotes(result.Notes)...), ChangeReplaced, uuid.Nil, nil
		case ReplaceExisting:
			return cloneNotes(result.Notes), ChangeReplaced, uuid.Nil, nil
		default:
			return nil, "", uuid.Nil, nil
		}
	})
	if err != nil {
		return ImportPlan{}, err
	}
	return result, nil
}

func plan(existing, incoming []models.Note, policy Policy) ImportPlan {
	p := ImportPlan{Policy: policy}
	taken := make(map[uuid.UUID]struct{}, len(existing)+len(incoming))
	for _, n := range existing {
		taken[n.ID] = struct{}{}
	}

	switch policy {
	case AddAsDuplicates:
		for _, n := range incoming {
			if _, dup := taken[n.ID]; dup {
				p.Duplicates++
				n = n.WithID(freshID(taken))
			} else {
				n = n.WithID(n.ID)
			}
			taken[n.ID] = struct{}{}
			p.Notes = append(p.Notes, n)
		}
	case SkipDuplicates:
		for _, n := range incoming {
			if _, dup := taken[n.ID]; dup {
				p.Duplicates++
				continue
			}
			taken[n.ID] = struct{}{}
			p.Notes = append(p.Notes, n.WithID(n.ID))
		}
	case ReplaceExisting:
		p.Notes = dedupe(cloneNotes(incoming))
		p.Removed = len(existing)
	}
	return p
}

func freshID(taken map[uuid.UUID]struct{}) uuid.UUID {
	for {
		id := uuid.New()
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}
