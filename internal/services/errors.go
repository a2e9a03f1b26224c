package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist or is outside
	// the caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not act on a document.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition is returned for a disallowed order status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
