package domain

import (
	"errors"
	"fmt"
)

// AuthReason distinguishes recoverable token problems from ones that need
// the user to link their account again.
type AuthReason string

const (
	AuthReasonRefresh AuthReason = "refresh"
	AuthReasonRelink  AuthReason = "relink"
)

// ValidationError indicates invalid input (malformed pattern, missing field).
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// NotFoundError indicates a missing entity.
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found"
}

// NewNotFoundError creates a not-found error for an entity kind.
func NewNotFoundError(kind string) error {
	return &NotFoundError{Kind: kind}
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps a persistence failure with the operation name.
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// AuthError indicates missing or expired external credentials.
type AuthError struct {
	Reason AuthReason
	Msg    string
}

func (e *AuthError) Error() string { return e.Msg }

// NewAuthError creates an auth error.
func NewAuthError(reason AuthReason, msg string) error {
	return &AuthError{Reason: reason, Msg: msg}
}

// ExternalServiceError is a non-2xx response from an external API that was
// not absorbed by the retry layer.
type ExternalServiceError struct {
	Service string
	Status  int
	Body    string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Service, e.Status, e.Body)
}

// RateLimitError is surfaced only when retries are exhausted on a 429.
type RateLimitError struct {
	Service string
}

func (e *RateLimitError) Error() string {
	return e.Service + ": rate limited"
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
