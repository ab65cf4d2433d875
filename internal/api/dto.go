package api

import (
	"time"

	"github.com/starford/stickies/internal/catalog"
	"github.com/starford/stickies/internal/noteservice"
)

// NoteInput is the request body for creating or updating a note.
type NoteInput = noteservice.NoteInput

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// ImportResponse describes a computed or applied import.
type ImportResponse struct {
	Policy     string `json:"policy" example:"skip"`
	Imported   int    `json:"imported" example:"3"`
	Duplicates int    `json:"duplicates" example:"1"`
	Removed    int    `json:"removed" example:"0"`
	Summary    string `json:"summary" example:"This will import 3 Note(s) (1 Duplicates skipped)"`
	DryRun     bool   `json:"dry_run"`
}

// BackupListResponse wraps snapshot listings, newest first.
type BackupListResponse struct {
	Backups []catalog.Entry `json:"backups" validate:"required"`
}

// BackupCreatedResponse is returned after a snapshot is written.
type BackupCreatedResponse struct {
	Name string `json:"name" example:"backup_2024-01-01_10-00-00.stickies"`
}

// DeleteBackupsRequest lists snapshots to remove.
type DeleteBackupsRequest struct {
	Names []string `json:"names" validate:"required"`
}

// RestoreResponse reports how many notes a restore loaded.
type RestoreResponse struct {
	Restored int `json:"restored" example:"12"`
}

// FolderRequest selects the backup folder.
type FolderRequest struct {
	Path string `json:"path" example:"/Users/me/Backups" validate:"required"`
}

// FolderResponse reports the resolved backup folder.
type FolderResponse struct {
	Path     string `json:"path,omitempty"`
	Selected bool   `json:"selected"`
}

// IntervalRequest sets the auto-backup interval. Interval takes a Go
// duration ("30m"); Seconds is used when Interval is empty.
type IntervalRequest struct {
	Interval string `json:"interval,omitempty" example:"30m"`
	Seconds  int64  `json:"seconds,omitempty" example:"1800"`
}

func (r IntervalRequest) duration() (time.Duration, error) {
	if r.Interval != "" {
		return time.ParseDuration(r.Interval)
	}
	return time.Duration(r.Seconds) * time.Second, nil
}

// RewriteRequest starts an AI rewrite of a note.
type RewriteRequest struct {
	Prompt string `json:"prompt" example:"convert to idiomatic Swift" validate:"required"`
}
