package roles

import "github.com/academico/academico/internal/rbac"

// Role represents a role with the views it grants.
type Role struct {
	ID    int64       `json:"id"`
	Name  string      `json:"nombre"`
	Code  string      `json:"codigo"`
	Views []rbac.View `json:"vistas"`
}

// ViewCodes returns the codes of the granted views.
func (r Role) ViewCodes() []string {
	codes := make([]string, 0, len(r.Views))
	for _, v := range r.Views {
		codes = append(codes, v.Code)
	}
	return codes
}

// CreateRoleInput is the payload for creating a role.
type CreateRoleInput struct {
	Name    string  `json:"nombre" validate:"required,max=30"`
	Code    string  `json:"codigo" validate:"required,max=20"`
	ViewIDs []int64 `json:"vista_ids" validate:"omitempty,dive,gt=0"`
}

// UpdateRoleInput is the payload for updating a role. Nil fields are left
// unchanged; a non-nil ViewIDs replaces the granted views.
type UpdateRoleInput struct {
	Name    *string  `json:"nombre" validate:"omitempty,min=1,max=30"`
	Code    *string  `json:"codigo" validate:"omitempty,min=1,max=20"`
	ViewIDs *[]int64 `json:"vista_ids" validate:"omitempty,dive,gt=0"`
}

// ListFilters pages the role listing.
type ListFilters struct {
	Limit  int
	Offset int
}
