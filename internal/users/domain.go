package users

import "time"

// User represents a user account for management. The password hash never
// leaves the repository.
type User struct {
	ID           int64      `json:"id"`
	PersonaID    int64      `json:"persona_id"`
	Username     string     `json:"username"`
	RoleID       *int64     `json:"rol_id"`
	RoleCode     *string    `json:"rol_codigo"`
	Status       string     `json:"estado"`
	LastAccessAt *time.Time `json:"ultimo_acceso_en"`
	CreatedAt    time.Time  `json:"creado_en"`
}

// ListFilters narrows the user listing.
type ListFilters struct {
	Limit  int
	Offset int
	RoleID *int64
	Status *string
}

// NewUser is the row inserted by Create.
type NewUser struct {
	PersonaID    int64
	Username     string
	PasswordHash string
	RoleID       *int64
	Status       string
}

// CreateUserInput is the payload for creating a user.
type CreateUserInput struct {
	PersonaID int64  `json:"persona_id" validate:"required,gt=0"`
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required,min=6"`
	RoleID    *int64 `json:"rol_id" validate:"omitempty,gt=0"`
}

// UpdateUserInput is the payload for patching a user. Nil fields are left unchanged.
type UpdateUserInput struct {
	PersonaID *int64  `json:"persona_id" validate:"omitempty,gt=0"`
	Username  *string `json:"username" validate:"omitempty,min=3,max=50"`
	Status    *string `json:"estado" validate:"omitempty,oneof=ACTIVO INACTIVO"`
}

// ChangeRoleInput assigns a role.
type ChangeRoleInput struct {
	RoleID int64 `json:"rol_id" validate:"required,gt=0"`
}

// SetPasswordInput replaces another user's password.
type SetPasswordInput struct {
	Password string `json:"password" validate:"required,min=6"`
}

// Session describes a user together with its effective permissions.
type Session struct {
	User        User     `json:"user"`
	RoleCode    *string  `json:"rol_codigo"`
	Permissions []string `json:"permisos"`
}
