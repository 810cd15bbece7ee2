// Package apperror defines the application's error taxonomy.
//
// Every error a handler can turn into a non-500 response wraps one of the base
// sentinels below. Domain errors (ErrRevealLocked, ErrNoAssignment, ...) wrap a
// base sentinel with %w, so callers can match either the specific cause or the
// broad category:
//
//	errors.Is(err, apperror.ErrRevealLocked) // specific
//	errors.Is(err, apperror.ErrConflict)     // category
package apperror

import (
	"errors"
	"fmt"
)

// Base categories.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrIntegrity    = errors.New("integrity failure")
)

// Domain errors. Each one wraps its category.
var (
	ErrInsufficientParticipants = fmt.Errorf("at least 3 active participants required: %w", ErrValidation)
	ErrPairingsExist            = fmt.Errorf("pairings already exist: %w", ErrConflict)
	ErrPairingLocked            = fmt.Errorf("pairings are locked: %w", ErrConflict)
	ErrPairingNotLocked         = fmt.Errorf("pairings have not been generated yet: %w", ErrConflict)
	ErrDuplicateGiver           = fmt.Errorf("giver already has a pairing: %w", ErrConflict)
	ErrDuplicateReceiver        = fmt.Errorf("receiver already has a giver: %w", ErrConflict)
	ErrRevealLocked             = fmt.Errorf("reveal is locked: %w", ErrConflict)
	ErrNoAssignment             = fmt.Errorf("no assignment: %w", ErrNotFound)
	ErrCorruptPairingState      = fmt.Errorf("corrupt pairing state: %w", ErrIntegrity)
	ErrDeadlinePassed           = fmt.Errorf("gift submission deadline has passed: %w", ErrForbidden)
)

type AppError struct {
	Err     error          // actual error
	Message string         // Human-readable error message
	Field   string         // Optional: field causing the error
	Details map[string]any // Optional: extra data for the client (e.g. revealDate)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or bad credentials (401).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Wrap attaches a human-readable message to one of the domain errors above.
//
//	return apperror.Wrap(apperror.ErrPairingsExist, "Pairings already exist. Reset them first.")
func Wrap(err error, message string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
	}
}

// WithDetails returns a copy of e carrying extra client-visible data.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}
