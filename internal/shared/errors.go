package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive indicates the account exists but is disabled.
	ErrUserInactive = errors.New("user inactive")
	// ErrUnauthenticated covers every rejected credential: missing, forged,
	// expired or stale tokens and inactive accounts. Callers must not add detail.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrRoleNotAssigned indicates a valid credential whose user has no role.
	ErrRoleNotAssigned = errors.New("role not assigned")
	// ErrPermissionDenied is returned by guards; it never names the failed check.
	ErrPermissionDenied = errors.New("insufficient permissions")
	// ErrConflict indicates a unique or referential constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)
