package service

import (
	"errors"
	"fmt"

	"users-service/internal/hashing"
	"users-service/internal/port"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user with these credentials already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrIncorrectCode        = errors.New("incorrect verification code")
	ErrAttemptsExceeded     = errors.New("verification attempts expired")
	ErrIncorrectAuthSession = errors.New("incorrect session")
	ErrIncorrectSignature   = errors.New("incorrect file signature")
	ErrIncorrectToken       = errors.New("incorrect token")
	ErrTokenRequired        = errors.New("token required")
	ErrNoSessionsToRefresh  = errors.New("you have no sessions, try to relogin")
	ErrIncorrectPassword    = errors.New("incorrect password")
	ErrTooManyRequests      = errors.New("too many requests")
)

// FieldError ties a public error to the request field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// FieldOf returns the field attached to err, if any.
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

func invalid(field, reason string) error {
	return fieldError(field, fmt.Errorf("%w: %s", ErrInvalidInput, reason))
}

// translateSave maps store conditions raised by UsersStore.Save.
func translateSave(err error) error {
	var conflict *port.ConflictError
	switch {
	case errors.As(err, &conflict):
		return fieldError(conflict.Field, ErrUserAlreadyExists)
	case errors.Is(err, port.ErrAlreadyExists):
		return ErrUserAlreadyExists
	case errors.Is(err, port.ErrNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("failed to save user: %w", err)
	}
}

func translateHash(err error) error {
	if errors.Is(err, hashing.ErrPasswordTooLong) {
		return invalid("password", "password is too long")
	}
	return err
}

func translateCode(err error) error {
	switch {
	case errors.Is(err, port.ErrCodeMismatch):
		return fieldError("code", ErrIncorrectCode)
	case errors.Is(err, port.ErrAttemptsExceeded):
		return ErrAttemptsExceeded
	default:
		return fmt.Errorf("failed to validate code: %w", err)
	}
}

func translateSession(err error) error {
	if errors.Is(err, port.ErrSessionMismatch) {
		return fieldError("session", ErrIncorrectAuthSession)
	}
	return fmt.Errorf("failed to verify session: %w", err)
}

func translateSignature(err error) error {
	if errors.Is(err, port.ErrSignatureMismatch) {
		return fieldError("avatar", ErrIncorrectSignature)
	}
	return err
}
