package rbac

import "context"

// View represents an atomic capability gating one functional area.
type View struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
	Code string `json:"codigo"`
}

// RoleViewLoader reads the view codes joined to a role.
type RoleViewLoader interface {
	RoleViewCodes(ctx context.Context, roleID int64) ([]string, error)
}

// CacheObserver receives permission cache lookups. Optional.
type CacheObserver interface {
	PermissionCacheLookup(hit bool)
}

// GuardObserver receives guard rejections. Optional.
type GuardObserver interface {
	GuardRejected(reason string)
}
