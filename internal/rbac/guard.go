package rbac

import (
	"fmt"
	"slices"
	"strings"

	"github.com/academico/academico/internal/shared"
)

// Rejection reasons reported by guards.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonRole            = "role"
	ReasonPermission      = "permission"
)

// DeniedError is returned by guards that reject an authenticated caller.
type DeniedError struct {
	Reason string
	Detail string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s %s", shared.ErrPermissionDenied, e.Reason, e.Detail)
}

// Unwrap exposes shared.ErrPermissionDenied.
func (e *DeniedError) Unwrap() error { return shared.ErrPermissionDenied }

type selectorKind uint8

const (
	selectorUnset selectorKind = iota
	selectorSingle
	selectorAny
	selectorUnrestricted
)

// RoleSelector names the roles a guard accepts. Codes are normalized once at
// construction. The zero value accepts nobody.
type RoleSelector struct {
	kind  selectorKind
	codes []string
}

// SingleRole accepts exactly one role code.
func SingleRole(code string) RoleSelector {
	normalized := shared.NormalizeCode(code)
	if normalized == "" {
		panic("rbac: SingleRole requires a role code")
	}
	return RoleSelector{kind: selectorSingle, codes: []string{normalized}}
}

// AnyRole accepts any of codes. Passing no codes panics; use Unrestricted to
// accept every role.
func AnyRole(codes ...string) RoleSelector {
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		if c := shared.NormalizeCode(code); c != "" && !slices.Contains(normalized, c) {
			normalized = append(normalized, c)
		}
	}
	if len(normalized) == 0 {
		panic("rbac: AnyRole requires at least one role code")
	}
	slices.Sort(normalized)
	return RoleSelector{kind: selectorAny, codes: normalized}
}

// Unrestricted accepts every authenticated role.
func Unrestricted() RoleSelector {
	return RoleSelector{kind: selectorUnrestricted}
}

// Allows reports whether roleCode satisfies the selector.
func (s RoleSelector) Allows(roleCode string) bool {
	switch s.kind {
	case selectorUnrestricted:
		return true
	case selectorSingle, selectorAny:
		return slices.Contains(s.codes, shared.NormalizeCode(roleCode))
	default:
		return false
	}
}

func (s RoleSelector) String() string {
	switch s.kind {
	case selectorUnrestricted:
		return "*"
	case selectorSingle, selectorAny:
		return strings.Join(s.codes, "|")
	default:
		return "none"
	}
}

// Guard checks a resolved AuthContext and returns nil when access is allowed.
type Guard func(*shared.AuthContext) error

// Authenticated accepts any resolved context.
func Authenticated() Guard {
	return func(auth *shared.AuthContext) error {
		if auth == nil {
			return shared.ErrUnauthenticated
		}
		return nil
	}
}

// RequireRole rejects callers whose role is not selected.
func RequireRole(selector RoleSelector) Guard {
	return func(auth *shared.AuthContext) error {
		if auth == nil {
			return shared.ErrUnauthenticated
		}
		if !selector.Allows(auth.RoleCode) {
			return &DeniedError{Reason: ReasonRole, Detail: selector.String()}
		}
		return nil
	}
}

// RequirePermission rejects callers whose role lacks the view code. An empty
// code panics.
func RequirePermission(code string) Guard {
	normalized := shared.NormalizeCode(code)
	if normalized == "" {
		panic("rbac: RequirePermission requires a view code")
	}
	return func(auth *shared.AuthContext) error {
		if auth == nil {
			return shared.ErrUnauthenticated
		}
		if !auth.Permissions.Has(normalized) {
			return &DeniedError{Reason: ReasonPermission, Detail: normalized}
		}
		return nil
	}
}

// RequireRoleAndPermission applies the role check first, then the permission check.
func RequireRoleAndPermission(selector RoleSelector, code string) Guard {
	return All(RequireRole(selector), RequirePermission(code))
}

// All runs guards in order and stops at the first rejection.
func All(guards ...Guard) Guard {
	return func(auth *shared.AuthContext) error {
		for _, guard := range guards {
			if err := guard(auth); err != nil {
				return err
			}
		}
		return nil
	}
}
