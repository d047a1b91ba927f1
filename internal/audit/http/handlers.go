package audithttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/academico/academico/internal/audit"
	"github.com/academico/academico/internal/platform/httpx"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/shared"
)

const dateLayout = "2006-01-02"

// LogService defines the audit log queries served over HTTP.
type LogService interface {
	List(ctx context.Context, filters audit.Filters) (audit.Page, error)
	Export(ctx context.Context, filters audit.Filters) ([]audit.Entry, error)
}

// Handler serves the audit log.
type Handler struct {
	logger  *slog.Logger
	service LogService
	rbac    rbac.Middleware
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service LogService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list audit log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit log", err)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, entries); err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="auditoria.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	var (
		f   audit.Filters
		err error
	)
	q := r.URL.Query()
	if f.Page, err = httpx.QueryInt(r, "page", 1, 1, 1<<31-1); err != nil {
		return f, err
	}
	if f.Size, err = httpx.QueryInt(r, "size", audit.DefaultPageSize, 1, audit.MaxPageSize); err != nil {
		return f, err
	}
	if f.ActorID, err = httpx.QueryInt64(r, "actor_id"); err != nil {
		return f, err
	}
	f.Action = strings.TrimSpace(q.Get("accion"))
	f.Entity = strings.TrimSpace(q.Get("entidad"))
	if f.From, err = parseDate(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if !f.To.IsZero() {
		// Dates are inclusive; the repository bound is exclusive.
		f.To = f.To.Add(24 * time.Hour)
	}
	return f, nil
}

func parseDate(value, name string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrValidation, name)
	}
	return t, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
