package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/academico/academico/internal/platform/db"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	db db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{db: q}
}

func where(f Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != nil {
		add("actor_id = $%d", *f.ActorID)
	}
	if f.Action != "" {
		add("accion ILIKE $%d", "%"+escapeLike(f.Action)+"%")
	}
	if f.Entity != "" {
		add("entidad ILIKE $%d", "%"+escapeLike(f.Entity)+"%")
	}
	if !f.From.IsZero() {
		add("creado_en >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("creado_en < $%d", f.To)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Count returns the number of rows matching filters.
func (r *PGRepository) Count(ctx context.Context, filters Filters) (int, error) {
	clause, args := where(filters)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+clause, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns matching rows, newest first.
func (r *PGRepository) List(ctx context.Context, filters Filters, limit, offset int) ([]Entry, error) {
	clause, args := where(filters)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
SELECT id, actor_id, accion, entidad, entidad_id, ip_origen, user_agent, creado_en
FROM audit_logs%s
ORDER BY creado_en DESC, id DESC
LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.IP, &e.UserAgent, &e.CreatedAt)
		return e, err
	})
}

var _ Repository = (*PGRepository)(nil)
