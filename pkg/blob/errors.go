package blob

import (
	"errors"
	"fmt"
)

// ============================================================================
// Standard Blob Store Errors
// ============================================================================

// Implementations wrap these with context so callers can match them with
// errors.Is:
//
//	if !exists {
//	    return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
//	}

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates a key that is empty, absolute, or contains
	// empty, "." or ".." segments.
	ErrInvalidKey = errors.New("invalid blob key")

	// ErrUnavailable indicates the storage backend is temporarily
	// unreachable. Retrying may succeed.
	ErrUnavailable = errors.New("storage unavailable")
)

func invalidKey(key string) error {
	return fmt.Errorf("key %q: %w", key, ErrInvalidKey)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
