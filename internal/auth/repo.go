package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academico/academico/internal/platform/db"
	"github.com/academico/academico/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	DB() db.Querier
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	TouchLastAccess(ctx context.Context, userID int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db   db.Querier
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, pool: pool}
}

// WithTx runs fn with a repository bound to a single transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{db: tx, pool: r.pool})
	})
}

// DB exposes the underlying querier, the transaction inside WithTx.
func (r *PGRepository) DB() db.Querier {
	return r.db
}

const selectUser = `
SELECT u.id, u.persona_id, u.username, u.password_hash, u.estado, u.rol_id, r.codigo,
       u.ultimo_acceso_en, u.creado_en
FROM usuarios u
LEFT JOIN roles r ON r.id = u.rol_id`

// FindByUsername fetches a user and its role by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(r.db.QueryRow(ctx, selectUser+` WHERE u.username = $1`, username))
}

// FindByID fetches a user and its role by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(r.db.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
}

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.PersonaID, &user.Username, &user.PasswordHash, &user.Status,
		&user.RoleID, &user.RoleCode, &user.LastAccessAt, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdatePassword stores a new password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE usuarios SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TouchLastAccess records the time of the latest successful login. An older
// timestamp never overwrites a newer one.
func (r *PGRepository) TouchLastAccess(ctx context.Context, userID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
UPDATE usuarios SET ultimo_acceso_en = GREATEST(COALESCE(ultimo_acceso_en, $2), $2)
WHERE id = $1`, userID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
