package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the account was deactivated by an administrator.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrAccountLocked indicates the account is temporarily locked after repeated failures.
	ErrAccountLocked = errors.New("account locked")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the request collides with existing state.
	ErrConflict = errors.New("conflict")
	// ErrRegistrationFailed hides unexpected failures while creating an account.
	ErrRegistrationFailed = errors.New("registration could not be completed")
	// ErrValidation indicates malformed input rejected before touching the store.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidAccessToken indicates the access token is malformed or its signature is wrong.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// AccountLockedError discloses how long a locked account stays locked.
type AccountLockedError struct {
	Until            time.Time
	MinutesRemaining int
}

func (e *AccountLockedError) Error() string {
	unit := "minutes"
	if e.MinutesRemaining == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("account locked, try again in %d %s", e.MinutesRemaining, unit)
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError carries a client-safe reason.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ValidationError lists every rejected field message.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func notFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

func conflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}
