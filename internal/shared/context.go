package shared

import (
	"context"
	"time"
)

// User status values persisted in usuarios.estado.
const (
	UserStatusActive   = "ACTIVO"
	UserStatusInactive = "INACTIVO"
)

// Principal is the identity carried by an authenticated request.
type Principal struct {
	ID           int64
	PersonaID    int64
	Username     string
	Status       string
	RoleID       *int64
	LastAccessAt *time.Time
	CreatedAt    time.Time
}

// AuthContext is the resolved, request-scoped bundle of identity, role and permissions.
type AuthContext struct {
	User        Principal
	RoleID      int64
	RoleCode    string
	Permissions PermissionSet
}

// ActorID returns the user id for audit records, nil when ctx is nil.
func (a *AuthContext) ActorID() *int64 {
	if a == nil {
		return nil
	}
	id := a.User.ID
	return &id
}

type authContextKey struct{}

// ContextWithAuth stores the auth context in ctx.
func ContextWithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext extracts the auth context from ctx.
func AuthFromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
