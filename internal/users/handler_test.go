package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academico/academico/internal/auth"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/shared"
)

type headerResolver map[string]*shared.AuthContext

// ResolveRequest picks the caller by the X-Test-User header.
func (h headerResolver) ResolveRequest(r *http.Request) (*shared.AuthContext, error) {
	auth, ok := h[r.Header.Get("X-Test-User")]
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return auth, nil
}

func newUsersRouter(t *testing.T) (http.Handler, *recordingAudit) {
	t.Helper()
	audit := &recordingAudit{}
	svc := newTestService(newMemoryRepo(), audit)
	resolver := headerResolver{
		"admin": {User: shared.Principal{ID: 99}, RoleCode: "ADMIN", Permissions: shared.NewPermissionSet("USUARIOS")},
		"doc":   {User: shared.Principal{ID: 3}, RoleCode: "DOC", Permissions: shared.NewPermissionSet("NOTAS")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, rbac.Middleware{Resolver: resolver, Logger: logger})
	r := chi.NewRouter()
	r.Route("/usuarios", handler.MountRoutes)
	return r, audit
}

func do(router http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestUsersFlow(t *testing.T) {
	router, audit := newUsersRouter(t)

	res := do(router, http.MethodPost, "/usuarios", "admin", `{"persona_id":10,"username":"jperez","password":"secreto","rol_id":2}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.NotContains(t, res.Body.String(), "password")
	var created User
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, "jperez", created.Username)

	res = do(router, http.MethodPatch, "/usuarios/1", "admin", `{"estado":"INACTIVO"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"estado":"INACTIVO"`)

	res = do(router, http.MethodGet, "/usuarios?estado=inactivo&rol_id=2", "admin", "")
	require.Equal(t, http.StatusOK, res.Code)
	var list []User
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	res = do(router, http.MethodGet, "/usuarios?estado=ACTIVO", "admin", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, res.Body.String())

	res = do(router, http.MethodPut, "/usuarios/1/rol", "admin", `{"rol_id":1}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"rol_codigo":"ADMIN"`)

	res = do(router, http.MethodPut, "/usuarios/1/password", "admin", `{"password":"nuevo123"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var session Session
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &session))
	assert.Equal(t, []string{"ROLES", "USUARIOS"}, session.Permissions)

	assert.Equal(t, []string{
		shared.AuditActionCreate,
		shared.AuditActionChangeStatus,
		shared.AuditActionChangeRole,
		shared.AuditActionChangePassword,
	}, audit.actions())
}

func TestUsersGuardsAndValidation(t *testing.T) {
	router, _ := newUsersRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/usuarios", "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/usuarios", "doc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/usuarios?estado=BORRADO", "admin", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/usuarios?rol_id=x", "admin", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/usuarios/5", "admin", "").Code)

	res := do(router, http.MethodPost, "/usuarios", "admin", `{"persona_id":10,"username":"jp","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "username")
	assert.Contains(t, res.Body.String(), "password")

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPatch, "/usuarios/1", "admin", `{"estado":"BORRADO"}`).Code)

	long := strings.Repeat("a", auth.MaxPasswordBytes+1)
	res = do(router, http.MethodPost, "/usuarios", "admin", `{"persona_id":10,"username":"largo","password":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())
	res = do(router, http.MethodPut, "/usuarios/1/password", "admin", `{"password":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/usuarios", "admin", `{"persona_id":77,"username":"nadie","password":"secreto"}`).Code)
}
