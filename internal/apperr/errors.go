package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")

	// ErrEncode marks a note or snapshot serialization failure.
	ErrEncode = errors.New("encode failed")
	// ErrDecode marks corrupt or foreign persisted data.
	ErrDecode = errors.New("decode failed")
	// ErrAccess marks a revoked or stale backup folder.
	ErrAccess = errors.New("folder access denied")
	// ErrNoFolder is returned when no backup folder is selected.
	ErrNoFolder = errors.New("no folder selected")
	// ErrRegistration marks a failed recurring job registry call.
	ErrRegistration = errors.New("job registration failed")
)

// PartialDeleteError reports a batch delete where some files could not be removed.
// Successful deletions are not rolled back.
type PartialDeleteError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("%d of %d backup(s) failed to delete", e.Failed, e.Total)
}

func (e *PartialDeleteError) Unwrap() []error {
	return e.Errs
}
