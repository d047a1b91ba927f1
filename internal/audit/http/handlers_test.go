package audithttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academico/academico/internal/audit"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/shared"
)

type stubLogService struct {
	page        audit.Page
	export      []audit.Entry
	lastFilters audit.Filters
}

func (s *stubLogService) List(ctx context.Context, filters audit.Filters) (audit.Page, error) {
	s.lastFilters = filters
	return s.page, nil
}

func (s *stubLogService) Export(ctx context.Context, filters audit.Filters) ([]audit.Entry, error) {
	s.lastFilters = filters
	return s.export, nil
}

type headerResolver map[string]*shared.AuthContext

func (h headerResolver) ResolveRequest(r *http.Request) (*shared.AuthContext, error) {
	auth, ok := h[r.Header.Get("X-Test-User")]
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return auth, nil
}

func newRouter(t *testing.T, svc *stubLogService) http.Handler {
	t.Helper()
	resolver := headerResolver{
		"admin":   {User: shared.Principal{ID: 1}, RoleCode: "ADMIN", Permissions: shared.NewPermissionSet("AUDITORIA")},
		"limited": {User: shared.Principal{ID: 2}, RoleCode: "ADMIN", Permissions: shared.NewPermissionSet("ROLES")},
		"auditor": {User: shared.Principal{ID: 3}, RoleCode: "COORD", Permissions: shared.NewPermissionSet("AUDITORIA")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, rbac.Middleware{Resolver: resolver, Logger: logger})
	r := chi.NewRouter()
	r.Route("/auditoria", handler.MountRoutes)
	return r
}

func get(router http.Handler, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Test-User", user)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestListParsesFilters(t *testing.T) {
	actor := int64(1)
	svc := &stubLogService{page: audit.Page{Total: 1, Page: 2, Size: 5, Items: []audit.Entry{
		{ID: 9, ActorID: &actor, Action: "CREAR", Entity: "ROL", CreatedAt: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)},
	}}}
	router := newRouter(t, svc)

	res := get(router, "/auditoria?page=2&size=5&actor_id=1&accion=crear&entidad=rol&from=2026-05-01&to=2026-05-04", "admin")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, 2, svc.lastFilters.Page)
	assert.Equal(t, 5, svc.lastFilters.Size)
	assert.Equal(t, int64(1), *svc.lastFilters.ActorID)
	assert.Equal(t, "crear", svc.lastFilters.Action)
	assert.Equal(t, "rol", svc.lastFilters.Entity)
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), svc.lastFilters.To)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total"])
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "CREAR", item["accion"])
	assert.Contains(t, item, "ip_origen")
	assert.Contains(t, item, "creado_en")
}

func TestListGuardsAndValidation(t *testing.T) {
	router := newRouter(t, &stubLogService{})

	assert.Equal(t, http.StatusUnauthorized, get(router, "/auditoria", "").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/auditoria", "limited").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/auditoria", "auditor").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/auditoria?page=0", "admin").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/auditoria?size=201", "admin").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/auditoria?from=yesterday", "admin").Code)
}

func TestExportCSV(t *testing.T) {
	svc := &stubLogService{export: []audit.Entry{{ID: 3, Action: "ELIMINAR", Entity: "ROL", CreatedAt: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)}}}
	router := newRouter(t, svc)

	res := get(router, "/auditoria/export.csv?entidad=rol", "admin")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "3,,ELIMINAR,ROL"))
	assert.Equal(t, "rol", svc.lastFilters.Entity)
}
