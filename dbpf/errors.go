package dbpf

import (
	"errors"
	"fmt"
)

// ErrInvalidArchive is matched by every FormatError.
var ErrInvalidArchive = errors.New("dbpf: invalid archive")

// FormatError describes a malformed archive.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type FormatError struct {
	Path   string
	Reason string
	cause  error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("dbpf: %s", e.Reason)
	}
	return fmt.Sprintf("dbpf: %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrInvalidArchive) hold for every FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrInvalidArchive }

func formatErr(cause error, format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...), cause: cause}
}
