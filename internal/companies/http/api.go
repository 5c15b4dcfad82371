package companieshttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/companyadmin/internal/companies"
	"github.com/odyssey-erp/companyadmin/internal/platform/httpx"
)

// CompanyService is the backend consumed by the JSON API.
type CompanyService interface {
	List(ctx context.Context) ([]companies.Company, error)
	Delete(ctx context.Context, id int64) error
}

// APIHandler exposes companies as JSON for remote screens.
type APIHandler struct {
	logger  *slog.Logger
	service CompanyService
}

var apiErrors = []httpx.ErrorStatus{
	{Err: companies.ErrInvalidID, Status: http.StatusBadRequest},
	{Err: companies.ErrNotFound, Status: http.StatusNotFound},
	{Err: companies.ErrCompanyInUse, Status: http.StatusConflict},
}

// NewAPIHandler builds an APIHandler.
func NewAPIHandler(logger *slog.Logger, service CompanyService) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{logger: logger, service: service}
}

// MountRoutes registers the JSON routes.
func (h *APIHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Delete("/{id}", h.delete)
}

func (h *APIHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err, apiErrors...)
		return
	}
	if items == nil {
		items = []companies.Company{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *APIHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, companies.ErrInvalidID.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, r, err, apiErrors...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
