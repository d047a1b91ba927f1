package audit

import "time"

// Page size bounds for the audit listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	maxFilterLength = 60
)

// Filters narrows the audit listing. Action and Entity match as case-insensitive
// substrings.
type Filters struct {
	ActorID *int64
	Action  string
	Entity  string
	From    time.Time
	To      time.Time
	Page    int
	Size    int
}

// Offset is the number of rows skipped for the current page.
func (f Filters) Offset() int {
	return (f.Page - 1) * f.Size
}

// Entry is one audit_logs row as exposed by the API.
type Entry struct {
	ID        int64     `json:"id"`
	ActorID   *int64    `json:"actor_id"`
	Action    string    `json:"accion"`
	Entity    string    `json:"entidad"`
	EntityID  *string   `json:"entidad_id"`
	IP        *string   `json:"ip_origen"`
	UserAgent *string   `json:"user_agent"`
	CreatedAt time.Time `json:"creado_en"`
}

// Page is a window of the audit log, newest first.
type Page struct {
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
	Items []Entry `json:"items"`
}
