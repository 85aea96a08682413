package service

import (
	"errors"
	"fmt"

	"legaldesk/internal/models"
)

var (
	ErrConfiguration     = errors.New("service is not configured")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("permission denied")
	ErrValidation        = errors.New("invalid request")
	ErrProvider          = errors.New("messaging provider error")
	ErrStorage           = errors.New("storage error")
	ErrDatabase          = errors.New("database error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrExpired           = errors.New("signing request has expired")
	ErrCancelled         = errors.New("signing request was cancelled")
	ErrConflict          = errors.New("signing request was modified concurrently")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

// TransitionError is returned when a lifecycle action is not legal from the current status.
type TransitionError struct {
	From models.Status
	To   models.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move signing request from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
