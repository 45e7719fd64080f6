package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotAuthenticated is returned when a mutating operation has no caller identity
	ErrNotAuthenticated = errors.New("user is not authenticated")
	// ErrNotFound covers both missing records and records the caller may not access
	ErrNotFound = errors.New("not found")
	// ErrTooManyJoinAttempts is returned when a user keeps guessing join codes
	ErrTooManyJoinAttempts = errors.New("too many failed join attempts")
	// ErrJoinCodeExhausted is returned when no free join code was found within the attempt budget
	ErrJoinCodeExhausted = errors.New("could not generate a unique join code")
)

// ValidationError describes user input that cannot be stored.
// Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err carries a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// isDuplicateKey reports whether err is a unique constraint violation.
// Drivers without error translation are matched on their message.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
