package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academico/academico/internal/platform/db"
	"github.com/academico/academico/internal/shared"
)

// Repository defines persistence for user accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	DB() db.Querier
	List(ctx context.Context, filters ListFilters) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error)
	PersonaExists(ctx context.Context, personaID int64) (bool, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	Create(ctx context.Context, u NewUser) (int64, error)
	Update(ctx context.Context, id int64, personaID int64, username, status string) error
	SetRole(ctx context.Context, id, roleID int64) error
	SetPassword(ctx context.Context, id int64, hash string) error
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

const selectUser = `
SELECT u.id, u.persona_id, u.username, u.rol_id, r.codigo, u.estado, u.ultimo_acceso_en, u.creado_en
FROM usuarios u
LEFT JOIN roles r ON r.id = u.rol_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.PersonaID, &u.Username, &u.RoleID, &u.RoleCode, &u.Status, &u.LastAccessAt, &u.CreatedAt)
	return u, err
}

// List returns users ordered by id.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]User, error) {
	var (
		where []string
		args  []any
	)
	if filters.RoleID != nil {
		args = append(args, *filters.RoleID)
		where = append(where, fmt.Sprintf("u.rol_id = $%d", len(args)))
	}
	if filters.Status != nil {
		args = append(args, *filters.Status)
		where = append(where, fmt.Sprintf("u.estado = $%d", len(args)))
	}
	query := selectUser
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY u.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
}

// Get fetches a user by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}

// UsernameTaken reports whether another account already uses username.
func (r *PGRepository) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM usuarios WHERE username = $1 AND id <> $2)`, username, exceptID).Scan(&taken)
	return taken, err
}

// PersonaExists reports whether the persona row exists.
func (r *PGRepository) PersonaExists(ctx context.Context, personaID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM personas WHERE id = $1)`, personaID).Scan(&ok)
	return ok, err
}

// RoleExists reports whether the role row exists.
func (r *PGRepository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&ok)
	return ok, err
}

// Create inserts a user and returns its id.
func (r *PGRepository) Create(ctx context.Context, u NewUser) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO usuarios (persona_id, username, password_hash, rol_id, estado)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, u.PersonaID, u.Username, u.PasswordHash, u.RoleID, u.Status).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

// Update stores persona, username and status.
func (r *PGRepository) Update(ctx context.Context, id int64, personaID int64, username, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE usuarios SET persona_id = $2, username = $3, estado = $4 WHERE id = $1`, id, personaID, username, status)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// SetRole assigns roleID to the user.
func (r *PGRepository) SetRole(ctx context.Context, id, roleID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE usuarios SET rol_id = $2 WHERE id = $1`, id, roleID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// SetPassword stores a new password hash.
func (r *PGRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE usuarios SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: username already exists", shared.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced persona or role does not exist", shared.ErrNotFound)
	default:
		return err
	}
}

var _ Repository = (*PGRepository)(nil)
