package common

import (
	"errors"
	"fmt"
)

// Domain errors - use errors.Is() to check
var (
	// Generic errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Authentication errors
	ErrInvalidToken = errors.New("invalid token")

	// Resource-specific errors
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrClientNotFound     = fmt.Errorf("client %w", ErrNotFound)
	ErrInstrumentNotFound = fmt.Errorf("instrument %w", ErrNotFound)
	ErrTaskNotFound       = fmt.Errorf("maintenance task %w", ErrNotFound)
	ErrAttachmentNotFound = fmt.Errorf("attachment %w", ErrNotFound)
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
