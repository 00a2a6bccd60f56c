package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTimestamp is returned when a client-supplied timestamp cannot be
// resolved to a valid instant.
var ErrInvalidTimestamp = errors.New("invalid timestamp format")

// MissingFieldError reports required fields absent from an ingest payload.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// InvalidTypeError reports a field present with the wrong JSON type.
type InvalidTypeError struct {
	Field string
	Want  string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("field %q must be a %s", e.Field, e.Want)
}

// PersistenceError wraps a backing-store failure. Handlers map it to a
// generic server error; the wrapped detail is for server-side logs only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
