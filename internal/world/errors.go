package world

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that no world exists for the requested id. It is never
// conflated with validation failures.
var ErrNotFound = errors.New("world not found")

// ValidationError reports malformed input, detected before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a fault in the durable store. It is retryable by the
// caller; the core performs no retries of its own.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
