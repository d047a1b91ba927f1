package auth

import (
	"time"

	"github.com/academico/academico/internal/shared"
)

// User represents an account row joined with its role.
type User struct {
	ID           int64
	PersonaID    int64
	Username     string
	PasswordHash string
	Status       string
	RoleID       *int64
	RoleCode     *string
	LastAccessAt *time.Time
	CreatedAt    time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Status == shared.UserStatusActive
}

// Principal strips credentials and role details from the user.
func (u *User) Principal() shared.Principal {
	return shared.Principal{
		ID:           u.ID,
		PersonaID:    u.PersonaID,
		Username:     u.Username,
		Status:       u.Status,
		RoleID:       u.RoleID,
		LastAccessAt: u.LastAccessAt,
		CreatedAt:    u.CreatedAt,
	}
}

// UserOut is the public representation of an account.
type UserOut struct {
	ID           int64      `json:"id"`
	PersonaID    int64      `json:"persona_id"`
	Username     string     `json:"username"`
	RoleID       *int64     `json:"rol_id"`
	Status       string     `json:"estado"`
	LastAccessAt *time.Time `json:"ultimo_acceso_en"`
	CreatedAt    time.Time  `json:"creado_en"`
}

// NewUserOut converts a principal for responses.
func NewUserOut(p shared.Principal) UserOut {
	return UserOut{
		ID:           p.ID,
		PersonaID:    p.PersonaID,
		Username:     p.Username,
		RoleID:       p.RoleID,
		Status:       p.Status,
		LastAccessAt: p.LastAccessAt,
		CreatedAt:    p.CreatedAt,
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token       string
	ExpiresAt   time.Time
	User        shared.Principal
	RoleCode    string
	Permissions shared.PermissionSet
}

// SessionInfo describes the current caller.
type SessionInfo struct {
	User        UserOut  `json:"user"`
	RoleCode    string   `json:"rol_codigo"`
	Permissions []string `json:"permisos"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	SessionInfo
}

// NewSessionInfo builds the response for an auth context.
func NewSessionInfo(auth *shared.AuthContext) SessionInfo {
	return SessionInfo{
		User:        NewUserOut(auth.User),
		RoleCode:    auth.RoleCode,
		Permissions: auth.Permissions.Sorted(),
	}
}
