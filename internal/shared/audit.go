package shared

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/academico/academico/internal/platform/db"
)

// Audit actions.
const (
	AuditActionCreate         = "CREAR"
	AuditActionUpdate         = "ACTUALIZAR"
	AuditActionDelete         = "ELIMINAR"
	AuditActionChangeRole     = "CAMBIAR_ROL"
	AuditActionChangePassword = "CAMBIAR_PASSWORD"
	AuditActionChangeStatus   = "CAMBIAR_ESTADO"
)

// Audited entities.
const (
	AuditEntityRole = "ROL"
	AuditEntityUser = "USUARIO"
)

// Column widths of audit_logs.
const (
	maxIPLength        = 45
	maxUserAgentLength = 255
)

// AuditEntry describes a privileged mutation to record.
type AuditEntry struct {
	ActorID  *int64
	Action   string
	Entity   string
	EntityID *string
	Request  RequestMeta
}

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID        int64
	ActorID   *int64
	Action    string
	Entity    string
	EntityID  *string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
}

// AuditWriter persists audit entries through the caller's querier.
type AuditWriter interface {
	Record(ctx context.Context, q db.Querier, entry AuditEntry) (AuditLog, error)
}

// AuditRecorder writes records into audit_logs.
type AuditRecorder struct{}

// NewAuditRecorder returns a new AuditRecorder.
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// EntityID formats an integer identifier for AuditEntry.EntityID.
func EntityID(id int64) *string {
	s := strconv.FormatInt(id, 10)
	return &s
}

// Record inserts the entry using q, normally the transaction of the mutation
// being audited, so a failed insert aborts the mutation with it.
func (l *AuditRecorder) Record(ctx context.Context, q db.Querier, entry AuditEntry) (AuditLog, error) {
	if l == nil {
		return AuditLog{}, errors.New("audit recorder not initialised")
	}
	if q == nil {
		return AuditLog{}, errors.New("audit recorder: querier required")
	}
	action := strings.TrimSpace(entry.Action)
	entity := strings.TrimSpace(entry.Entity)
	if action == "" || entity == "" {
		return AuditLog{}, errors.New("audit log requires action/entity")
	}
	log := AuditLog{
		ActorID:   entry.ActorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entry.EntityID,
		IP:        optional(entry.Request.IP, maxIPLength),
		UserAgent: optional(entry.Request.UserAgent, maxUserAgentLength),
	}
	err := q.QueryRow(ctx,
		`INSERT INTO audit_logs (actor_id, accion, entidad, entidad_id, ip_origen, user_agent) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, creado_en`,
		log.ActorID, log.Action, log.Entity, log.EntityID, log.IP, log.UserAgent,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("audit: insert %s %s: %w", log.Action, log.Entity, err)
	}
	return log, nil
}

func optional(value string, limit int) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	value = truncate(value, limit)
	return &value
}

// truncate cuts value to at most limit bytes on a rune boundary. Invalid UTF-8
// is replaced first so the result is always valid text for the database.
func truncate(value string, limit int) string {
	value = strings.ToValidUTF8(value, "\uFFFD")
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
