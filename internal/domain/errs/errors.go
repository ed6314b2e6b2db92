package errs

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDirectory is returned when a user directory holds no records.
	// Fallback assignment is undefined over an empty directory.
	ErrEmptyDirectory = errors.New("user directory is empty")

	// ErrUnsupportedFormat is returned when a dataset format cannot be decoded
	ErrUnsupportedFormat = errors.New("unsupported dataset format")

	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("invalid state")
)
