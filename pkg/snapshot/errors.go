package snapshot

import (
	"errors"
	"fmt"
)

// ============================================================================
// Snapshot Errors
// ============================================================================

// Save-hook paths (BeginArchive, CompleteArchive) never return these: they
// log and skip instead so a failed snapshot cannot block a save. The
// reporting and restore operations return them wrapped with context.

var (
	// ErrEntryNotFound indicates the requested archive entry does not exist.
	ErrEntryNotFound = errors.New("snapshot entry not found")

	// ErrMediaNotFound indicates the media record being restored or listed
	// does not exist.
	ErrMediaNotFound = errors.New("media item not found")

	// ErrNoFile indicates the media record has no usable file reference.
	ErrNoFile = errors.New("media item has no file")

	// ErrPinned indicates a delete of a pinned entry. Unpin it first.
	ErrPinned = errors.New("snapshot entry is pinned")

	// ErrNoteTooLong indicates a note exceeding MaxNoteLength characters.
	ErrNoteTooLong = errors.New("snapshot note too long")

	// ErrUntracked indicates a media item whose content type is not versioned.
	ErrUntracked = errors.New("content type is not tracked")

	// ErrNoPersister indicates a restore without a host persist hook.
	ErrNoPersister = errors.New("no persister configured")
)

// RestoreError is returned by Coordinator.Restore. It records which step
// failed and carries an operation id that also appears in the logs.
type RestoreError struct {
	OpID    string
	MediaID int
	Entry   string
	Step    string
	Err     error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore %s (media %d, entry %q) failed at %s: %v",
		e.OpID, e.MediaID, e.Entry, e.Step, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}
