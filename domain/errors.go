package domain

import "errors"

var (
	// ErrValidation marks user input rejected at the form boundary.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidBackup is returned when an imported file does not have the
	// expected snapshot shape. Nothing is mutated when it is returned.
	ErrInvalidBackup = errors.New("invalid backup file")
	// ErrPersistence wraps storage failures. The in-memory store stays
	// authoritative when it occurs.
	ErrPersistence = errors.New("persistence failed")
	// ErrExport wraps serialization or document generation failures.
	ErrExport = errors.New("export failed")
	// ErrNotFound is reported when an id is absent from a collection.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a single rejected form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
