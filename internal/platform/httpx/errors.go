// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/academico/academico/internal/shared"
)

type errorMapping struct {
	target error
	status int
	title  string
	fixed  bool
}

// Authentication and authorization failures carry their fixed message so the
// response never reveals which check rejected the request.
var errorMappings = []errorMapping{
	{shared.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized", true},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized", true},
	{shared.ErrRoleNotAssigned, http.StatusForbidden, "Forbidden", true},
	{shared.ErrUserInactive, http.StatusForbidden, "Forbidden", true},
	{shared.ErrPermissionDenied, http.StatusForbidden, "Forbidden", true},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found", false},
	{shared.ErrConflict, http.StatusConflict, "Conflict", false},
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed", false},
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		detail := err.Error()
		if m.fixed {
			detail = m.target.Error()
		}
		Problem(w, m.status, m.title, detail)
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// IsServerError reports whether err maps to a 500 response.
func IsServerError(err error) bool {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return false
		}
	}
	return true
}
