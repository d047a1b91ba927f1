package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/academico/academico/internal/platform/httpx"
	"github.com/academico/academico/internal/shared"
)

// ContextResolver turns a request into an AuthContext.
type ContextResolver interface {
	ResolveRequest(r *http.Request) (*shared.AuthContext, error)
}

// Middleware wires authentication and guards into HTTP handlers.
type Middleware struct {
	Resolver ContextResolver
	Logger   *slog.Logger
	Metrics  GuardObserver
}

// Authenticate resolves the caller and stores the AuthContext on the request
// context. Requests that cannot be resolved are rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.AuthFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		auth, err := m.Resolver.ResolveRequest(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		if m.Logger != nil {
			m.Logger.Debug("rbac authenticated", slog.String("path", r.URL.Path), slog.Int64("user_id", auth.User.ID), slog.String("rol_codigo", auth.RoleCode))
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithAuth(r.Context(), auth)))
	})
}

// Require authenticates the caller, when not done already, and applies guard.
func (m Middleware) Require(guard Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		checked := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard(shared.AuthFromContext(r.Context())); err != nil {
				m.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
		return m.Authenticate(checked)
	}
}

// RequireRole is shorthand for Require(RequireRole(selector)).
func (m Middleware) RequireRole(selector RoleSelector) func(http.Handler) http.Handler {
	return m.Require(RequireRole(selector))
}

// RequirePermission is shorthand for Require(RequirePermission(code)).
func (m Middleware) RequirePermission(code string) func(http.Handler) http.Handler {
	return m.Require(RequirePermission(code))
}

// RequireRoleAndPermission is shorthand for Require(RequireRoleAndPermission(selector, code)).
func (m Middleware) RequireRoleAndPermission(selector RoleSelector, code string) func(http.Handler) http.Handler {
	return m.Require(RequireRoleAndPermission(selector, code))
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	reason := rejectionReason(err)
	if m.Metrics != nil && reason != "" {
		m.Metrics.GuardRejected(reason)
	}
	if m.Logger != nil {
		if reason == "" {
			m.Logger.Error("rbac resolve", slog.String("path", r.URL.Path), slog.Any("error", err))
		} else {
			m.Logger.Debug("rbac reject", slog.String("path", r.URL.Path), slog.String("reason", reason), slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}

func rejectionReason(err error) string {
	var denied *DeniedError
	switch {
	case errors.As(err, &denied):
		return denied.Reason
	case errors.Is(err, shared.ErrUnauthenticated):
		return ReasonUnauthenticated
	case errors.Is(err, shared.ErrRoleNotAssigned):
		return ReasonRole
	case errors.Is(err, shared.ErrPermissionDenied):
		return ReasonPermission
	default:
		return ""
	}
}
