package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academico/academico/internal/platform/db"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/shared"
)

// Repository defines data access methods for roles.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	DB() db.Querier
	List(ctx context.Context, filters ListFilters) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, name, code string) (int64, error)
	Update(ctx context.Context, id int64, name, code string) error
	Delete(ctx context.Context, id int64) error
	ReplaceViews(ctx context.Context, roleID int64, viewIDs []int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	db   db.Querier
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, pool: pool}
}

// WithTx runs fn with a repository bound to a single transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{db: tx, pool: r.pool})
	})
}

// DB exposes the underlying querier.
func (r *PGRepository) DB() db.Querier {
	return r.db
}

// List returns roles ordered by id with their views.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, nombre, codigo FROM roles ORDER BY id LIMIT $1 OFFSET $2`, filters.Limit, filters.Offset)
	if err != nil {
		return nil, err
	}
	roles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Role, error) {
		var role Role
		err := row.Scan(&role.ID, &role.Name, &role.Code)
		return role, err
	})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return roles, nil
	}
	ids := make([]int64, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
	}
	views, err := r.viewsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Views = views[roles[i].ID]
		if roles[i].Views == nil {
			roles[i].Views = []rbac.View{}
		}
	}
	return roles, nil
}

// Get fetches a role by id with its views.
func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.db.QueryRow(ctx, `SELECT id, nombre, codigo FROM roles WHERE id = $1`, id).Scan(&role.ID, &role.Name, &role.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
		}
		return Role{}, err
	}
	views, err := r.viewsFor(ctx, []int64{id})
	if err != nil {
		return Role{}, err
	}
	role.Views = views[id]
	if role.Views == nil {
		role.Views = []rbac.View{}
	}
	return role, nil
}

func (r *PGRepository) viewsFor(ctx context.Context, roleIDs []int64) (map[int64][]rbac.View, error) {
	rows, err := r.db.Query(ctx, `
SELECT rv.rol_id, v.id, v.nombre, v.codigo
FROM rol_vistas rv
JOIN vistas v ON v.id = rv.vista_id
WHERE rv.rol_id = ANY($1)
ORDER BY v.nombre`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]rbac.View, len(roleIDs))
	for rows.Next() {
		var roleID int64
		var v rbac.View
		if err := rows.Scan(&roleID, &v.ID, &v.Name, &v.Code); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], v)
	}
	return out, rows.Err()
}

// Create inserts a role and returns its id.
func (r *PGRepository) Create(ctx context.Context, name, code string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO roles (nombre, codigo) VALUES ($1, $2) RETURNING id`, name, code).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: role name or code already exists", shared.ErrConflict)
		}
		return 0, err
	}
	return id, nil
}

// Update renames a role.
func (r *PGRepository) Update(ctx context.Context, id int64, name, code string) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET nombre = $2, codigo = $3 WHERE id = $1`, id, name, code)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: role name or code already exists", shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Delete removes a role and its view grants. Roles still assigned to users
// cannot be deleted.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM rol_vistas WHERE rol_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: role is assigned to users", shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ReplaceViews sets the views granted to a role.
func (r *PGRepository) ReplaceViews(ctx context.Context, roleID int64, viewIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM rol_vistas WHERE rol_id = $1`, roleID); err != nil {
		return err
	}
	if len(viewIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `INSERT INTO rol_vistas (rol_id, vista_id) SELECT $1, unnest($2::bigint[])`, roleID, viewIDs)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown view", shared.ErrValidation)
		}
		return err
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
