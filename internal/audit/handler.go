package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
)

// Handler exposes the audit trail JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers HTTP routes. The trail is read only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll("audit.read"))
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.exportCSV)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if result.Entries == nil {
		result.Entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	data, err := h.service.ExportCSV(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	filters := Filters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filters{}, errors.New("invalid actor_id")
		}
		filters.ActorID = id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, errors.New("invalid from timestamp")
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, errors.New("invalid to timestamp")
		}
		filters.To = t
	}
	return filters, nil
}
