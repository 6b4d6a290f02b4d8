// Package service provides business logic services for the Luma identity service.
package service

import (
	"errors"
	"fmt"

	"github.com/prn-tf/luma-identity/internal/domain"
)

// Common service errors. Every operation fails with one of these kinds.
var (
	// Input errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrNothingToUpdate = errors.New("nothing to update")
	ErrSamePassword    = errors.New("new password matches the old password")

	// Authentication errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrPasswordFail     = fmt.Errorf("%w: password verification failed", ErrAuthFailed)
	ErrNotAuthenticated = errors.New("not authenticated")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")
	ErrFieldDenied      = domain.ErrFieldDenied

	// State errors
	ErrConflict       = errors.New("already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrAvatarNotFound = errors.New("avatar not found")
	ErrInternalError  = errors.New("internal server error")
)

// PermissionError reports why an operation was refused for the actor.
type PermissionError struct {
	Reason domain.DenyReason
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrPermissionDenied.Error(), e.Reason)
}

// Unwrap returns ErrPermissionDenied for errors.Is.
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// ConflictError names the field whose value is already taken.
type ConflictError struct {
	Field string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, ErrConflict.Error())
}

// Unwrap returns ErrConflict for errors.Is.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

func permissionDenied(reason domain.DenyReason) error {
	return &PermissionError{Reason: reason}
}

func conflict(field string) error {
	return &ConflictError{Field: field}
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func internalError(err error) error {
	return fmt.Errorf("%w: %v", ErrInternalError, err)
}
