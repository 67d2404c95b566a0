package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential indicates the authorization header was absent or malformed.
	ErrMissingCredential = errors.New("authorization header is missing or invalid")
	// ErrInvalidCredential indicates the identity provider rejected the token.
	ErrInvalidCredential = errors.New("invalid or expired token")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent mutation on the same target; callers may retry.
	ErrConflict = errors.New("concurrent modification in progress")
	// ErrPartialPermissionUpdate indicates a permission replacement whose outcome
	// is unknown; a reconciliation task re-applies the intended state.
	ErrPartialPermissionUpdate = errors.New("permission update may be partially applied")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthzError carries the decision engine's deny reason.
type AuthzError struct {
	Reason  string
	Message string
}

func (e *AuthzError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "forbidden: " + e.Reason
}

// UpstreamError wraps an identity-provider or storage failure. The wrapped
// error is logged, never rendered to clients.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure in %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError constructs an UpstreamError.
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}
