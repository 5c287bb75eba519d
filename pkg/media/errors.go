package media

import "errors"

var (
	// ErrNotFound indicates no record exists for the requested id.
	ErrNotFound = errors.New("media record not found")

	// ErrInvalidRecord indicates a record that cannot be stored (nil,
	// negative id, missing content type).
	ErrInvalidRecord = errors.New("invalid media record")
)

// Validate checks the fields every repository requires.
func Validate(rec *Record) error {
	switch {
	case rec == nil:
		return ErrInvalidRecord
	case rec.ID < 0:
		return errors.Join(ErrInvalidRecord, errors.New("negative id"))
	case rec.ContentTypeAlias == "":
		return errors.Join(ErrInvalidRecord, errors.New("content type alias is required"))
	}
	return nil
}
