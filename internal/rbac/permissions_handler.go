package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/academico/academico/internal/platform/httpx"
	"github.com/academico/academico/internal/shared"
)

// ViewLister lists the view catalogue.
type ViewLister interface {
	ListViews(ctx context.Context) ([]View, error)
}

// ViewsHandler exposes the view catalogue.
type ViewsHandler struct {
	logger  *slog.Logger
	service ViewLister
	rbac    Middleware
}

// NewViewsHandler builds ViewsHandler instance.
func NewViewsHandler(logger *slog.Logger, service ViewLister, rbac Middleware) *ViewsHandler {
	return &ViewsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers view routes.
func (h *ViewsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(shared.ViewViews))
		r.Get("/", h.listViews)
	})
}

func (h *ViewsHandler) listViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListViews(r.Context())
	if err != nil {
		h.logger.Error("list views", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}
