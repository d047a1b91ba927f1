package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/academico/academico/internal/platform/httpx"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: httpx.NewValidator()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(shared.ViewUsers))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Post("/", h.createUser)
		r.Patch("/{id}", h.updateUser)
		r.Put("/{id}/rol", h.changeRole)
		r.Put("/{id}/password", h.setPassword)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	var (
		f   ListFilters
		err error
	)
	if f.Limit, err = httpx.QueryInt(r, "limit", 100, 1, 200); err != nil {
		return f, err
	}
	if f.Offset, err = httpx.QueryInt(r, "offset", 0, 0, 1<<31-1); err != nil {
		return f, err
	}
	if f.RoleID, err = httpx.QueryInt64(r, "rol_id"); err != nil {
		return f, err
	}
	if status := shared.NormalizeCode(r.URL.Query().Get("estado")); status != "" {
		if status != shared.UserStatusActive && status != shared.UserStatusInactive {
			return f, httpx.ErrInvalidQuery("estado")
		}
		f.Status = &status
	}
	return f, nil
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.Create(r.Context(), shared.AuthFromContext(r.Context()), in, shared.RequestMetaFromRequest(r))
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateUserInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.Update(r.Context(), shared.AuthFromContext(r.Context()), id, in, shared.RequestMetaFromRequest(r))
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ChangeRoleInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.ChangeRole(r.Context(), shared.AuthFromContext(r.Context()), id, in, shared.RequestMetaFromRequest(r))
	if err != nil {
		h.fail(w, "change user role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) setPassword(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in SetPasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	session, err := h.service.SetPassword(r.Context(), shared.AuthFromContext(r.Context()), id, in, shared.RequestMetaFromRequest(r))
	if err != nil {
		h.fail(w, "set user password", err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
