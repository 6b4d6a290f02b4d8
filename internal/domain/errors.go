// Package domain contains the core business entities for the Luma identity service.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrGroupNotFound indicates a gid that has no group row.
	ErrGroupNotFound = errors.New("group not found")

	// ===========================================
	// Field Policy Errors
	// ===========================================

	// ErrFieldDenied indicates the field access policy rejected a mutation.
	ErrFieldDenied = errors.New("field mutation denied")

	// ErrUnknownField indicates a column that is not part of the user record.
	ErrUnknownField = errors.New("unknown field")
)

// DenyReason explains why a mutation or operation was rejected.
type DenyReason string

const (
	ReasonReadOnly  DenyReason = "READ_ONLY"
	ReasonSensitive DenyReason = "SENSITIVE"
	ReasonStaffOnly DenyReason = "STAFF_ONLY"
	ReasonRootOnly  DenyReason = "ROOT_ONLY"
	ReasonNotOwner  DenyReason = "NOT_OWNER"
	ReasonBanned    DenyReason = "BANNED"
)

// FieldDeniedError reports which field of a batch was rejected and why.
type FieldDeniedError struct {
	Field  string
	Reason DenyReason
}

// Error implements the error interface.
func (e *FieldDeniedError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrFieldDenied.Error(), e.Field, e.Reason)
}

// Unwrap returns ErrFieldDenied for errors.Is.
func (e *FieldDeniedError) Unwrap() error {
	return ErrFieldDenied
}

// NewFieldDeniedError creates a FieldDeniedError.
func NewFieldDeniedError(field string, reason DenyReason) *FieldDeniedError {
	return &FieldDeniedError{Field: field, Reason: reason}
}
