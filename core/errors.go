package core

import "errors"

// Error kinds surfaced to users. Callers wrap them with fmt.Errorf("...: %w")
// and handlers pick a status code with errors.Is.
var (
	// ErrInvalidInput is returned for rejected input, such as a non-image upload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a template or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLoadFailure is returned when an image cannot be fetched or decoded.
	ErrLoadFailure = errors.New("load failure")

	// ErrConstraintViolation is returned when an edit would break a state invariant.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrSaveFailure is returned when persisting a template fails.
	ErrSaveFailure = errors.New("save failure")
)
