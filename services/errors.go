package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller input that fails a precondition.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProcessing marks image bytes that cannot be decoded or re-encoded.
	ErrProcessing = errors.New("processing error")
	// ErrStorage marks a persistence or filesystem failure.
	ErrStorage = errors.New("storage error")
	// ErrForbidden marks an admin-only call made without the admin role.
	ErrForbidden = errors.New("admin privileges required")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

func processingError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProcessing, op, err)
}
