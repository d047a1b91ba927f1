package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academico/academico/internal/rbac"
	_ "github.com/academico/academico/testing"
)

func newAuthRouter(t *testing.T, users ...*User) (http.Handler, serviceFixture) {
	t.Helper()
	f := newServiceFixture(t, users...)
	mw := rbac.Middleware{Resolver: f.res, Logger: discardLogger()}
	handler := NewHandler(discardLogger(), f.svc, mw, HandlerConfig{})
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, f
}

func loginUser(t *testing.T) *User {
	u := docUser(10, "docente")
	u.PasswordHash = hashed(t, "secreto1")
	return u
}

func TestLoginJSON(t *testing.T) {
	router, _ := newAuthRouter(t, loginUser(t))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"docente","password":"secreto1"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body LoginResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "bearer", body.TokenType)
	assert.Equal(t, "DOC", body.RoleCode)
	assert.Equal(t, []string{"ASISTENCIAS", "NOTAS"}, body.Permissions)
	assert.Equal(t, "docente", body.User.Username)

	cookie := res.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, CookieName, cookie[0].Name)
	assert.Equal(t, body.AccessToken, cookie[0].Value)
	assert.True(t, cookie[0].HttpOnly)
	assert.NotContains(t, res.Body.String(), "password_hash")
}

func TestLoginForm(t *testing.T) {
	router, _ := newAuthRouter(t, loginUser(t))

	form := url.Values{"username": {"docente"}, "password": {"secreto1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newAuthRouter(t, loginUser(t))

	for name, body := range map[string]string{
		"wrong password": `{"username":"docente","password":"nope"}`,
		"missing field":  `{"username":"docente"}`,
		"broken json":    `{"username":`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			res := httptest.NewRecorder()
			router.ServeHTTP(res, req)
			assert.Equal(t, http.StatusUnauthorized, res.Code)
			assert.Empty(t, res.Result().Cookies())
		})
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	router, _ := newAuthRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, res.Code)
	header := res.Header().Get("Set-Cookie")
	assert.Contains(t, header, CookieName+"=")
	assert.Contains(t, header, "Max-Age=0")
	assert.Contains(t, header, "Path=/")
	assert.Contains(t, header, "HttpOnly")
	assert.Contains(t, header, "SameSite=Lax")
}

func TestMeEndpoints(t *testing.T) {
	u := loginUser(t)
	router, f := newAuthRouter(t, u)
	token := f.tokenFor(t, u)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	var info SessionInfo
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &info))
	assert.Equal(t, "DOC", info.RoleCode)
	assert.Equal(t, u.ID, info.User.ID)

	req = httptest.NewRequest(http.MethodGet, "/auth/me/permisos", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	var perms []string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &perms))
	assert.Equal(t, []string{"ASISTENCIAS", "NOTAS"}, perms)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	u := loginUser(t)
	router, f := newAuthRouter(t, u)
	token := f.tokenFor(t, u)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/change-password", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		return res
	}

	res := send(`{"old_password":"secreto1","new_password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "new_password")

	res = send(`{"old_password":"incorrecta","new_password":"nueva-clave"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = send(`{"old_password":"secreto1","new_password":"` + strings.Repeat("a", MaxPasswordBytes+1) + `"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, f.audit.entries)

	res = send(`{"old_password":"secreto1","new_password":"nueva-clave"}`)
	assert.Equal(t, http.StatusOK, res.Code)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "192.0.2.1", f.audit.entries[0].Request.IP)
}
