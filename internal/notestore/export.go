package notestore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/models"
)

// Export returns the whole collection as pretty JSON, the document format
// shared with backups and imports.
func (s *Store) Export() ([]byte, error) {
	return models.EncodeNotes(s.Notes(), true)
}

// ExportNote returns a single note wrapped in a one-element document.
func (s *Store) ExportNote(id uuid.UUID) ([]byte, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, fmt.Errorf("notestore: export %s: %w", id, err)
	}
	return models.EncodeNotes([]models.Note{n}, true)
}

// ExportFilename is the suggested name for a full export.
func ExportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("Stickies_Export_%s.%s", now.Format("2006-01-02"), ext)
}
