package dbpfindex

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no entry matches a lookup that requires one.
	ErrNotFound = errors.New("dbpfindex: not found")

	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("dbpfindex: invalid configuration")

	// ErrAllSourcesFailed is returned by Build when every candidate file
	// failed to open.
	ErrAllSourcesFailed = errors.New("dbpfindex: all sources failed")

	// ErrSnapshotCorrupt is returned for snapshots that fail validation.
	ErrSnapshotCorrupt = errors.New("dbpfindex: corrupt snapshot")

	// ErrNotExemplar is returned when an exemplar is requested from an entry
	// of another type.
	ErrNotExemplar = errors.New("dbpfindex: entry is not an exemplar")

	// ErrIndexChanged is returned by BuildFamilies when new files kept
	// being registered while it ran.
	ErrIndexChanged = errors.New("dbpfindex: index changed during family pass")
)

// SourceError records a file that could not be indexed.
//
// The original underlying error can be accessed via errors.Unwrap.
type SourceError struct {
	Path  string
	cause error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.cause)
}

func (e *SourceError) Unwrap() error { return e.cause }

// ConfigError indicates an unusable option or config file value.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// Is reports ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func configErr(field, reason string, cause error) *ConfigError {
	return &ConfigError{Field: field, Reason: reason, cause: cause}
}

func corruptErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSnapshotCorrupt, fmt.Sprintf(format, args...))
}
