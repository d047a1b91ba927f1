package rbac

import (
	"context"
	"fmt"

	"github.com/academico/academico/internal/platform/db"
)

// Service reads the view catalogue and role grants.
type Service struct {
	q db.Querier
}

// NewService constructs a Service backed by q, normally the pool.
func NewService(q db.Querier) *Service {
	return &Service{q: q}
}

// ListViews returns all views ordered by name.
func (s *Service) ListViews(ctx context.Context) ([]View, error) {
	rows, err := s.q.Query(ctx, `SELECT id, nombre, codigo FROM vistas ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list views: %w", err)
	}
	defer rows.Close()
	views := make([]View, 0)
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.Name, &v.Code); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// RoleViewCodes returns the codes of the views joined to roleID. A role with no
// views, or one that does not exist, yields an empty slice.
func (s *Service) RoleViewCodes(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := s.q.Query(ctx, `
SELECT v.codigo
FROM rol_vistas rv
JOIN vistas v ON v.id = rv.vista_id
WHERE rv.rol_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

var _ RoleViewLoader = (*Service)(nil)
