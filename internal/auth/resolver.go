package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"github.com/academico/academico/internal/shared"
)

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "access_token"

// PermissionSource returns the permissions granted to a role.
type PermissionSource interface {
	Get(ctx context.Context, roleID int64) (shared.PermissionSet, error)
}

// UserFinder loads a user with its role.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*User, error)
}

// Resolver turns a bearer token into an AuthContext.
type Resolver struct {
	tokens *TokenService
	users  UserFinder
	perms  PermissionSource
}

// NewResolver constructs a Resolver.
func NewResolver(tokens *TokenService, users UserFinder, perms PermissionSource) *Resolver {
	return &Resolver{tokens: tokens, users: users, perms: perms}
}

// Resolve validates token and loads the caller's identity, role and permissions.
// Invalid tokens, unknown or inactive users and renamed accounts all yield
// shared.ErrUnauthenticated. A user without role yields shared.ErrRoleNotAssigned.
// Store and cache failures are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, token string) (*shared.AuthContext, error) {
	claims, err := r.tokens.Decode(token)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	userID, username, ok := sessionClaims(claims)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, err
	}
	if !user.Active() || user.Username != username {
		return nil, shared.ErrUnauthenticated
	}
	if user.RoleID == nil || user.RoleCode == nil {
		return nil, shared.ErrRoleNotAssigned
	}

	perms, err := r.perms.Get(ctx, *user.RoleID)
	if err != nil {
		return nil, err
	}
	return &shared.AuthContext{
		User:        user.Principal(),
		RoleID:      *user.RoleID,
		RoleCode:    *user.RoleCode,
		Permissions: perms,
	}, nil
}

// ResolveRequest resolves the token carried by req.
func (r *Resolver) ResolveRequest(req *http.Request) (*shared.AuthContext, error) {
	token := TokenFromRequest(req)
	if token == "" {
		return nil, shared.ErrUnauthenticated
	}
	return r.Resolve(req.Context(), token)
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the access_token cookie.
func TokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func sessionClaims(claims map[string]any) (int64, string, bool) {
	rawID, ok := claims[ClaimUserID]
	if !ok || rawID == nil {
		return 0, "", false
	}
	userID, err := cast.ToInt64E(rawID)
	if err != nil || userID <= 0 {
		return 0, "", false
	}
	username, ok := claims[ClaimUsername].(string)
	if !ok || username == "" {
		return 0, "", false
	}
	return userID, username, true
}
