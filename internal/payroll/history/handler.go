package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
	"github.com/paycycle/paycycle/internal/shared"
)

// Handler exposes the archive JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers HTTP routes. Read only: the archive accepts no
// mutation from the API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny("payroll.read", "payroll.close"))
	r.Get("/", h.list)
	r.Get("/batches", h.listBatches)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	records, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list payroll history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if records == nil {
		records = []Record{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"records":    records,
		"pagination": shared.NewPagination(filters.Page, filters.PerPage, total),
	})
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	batches, err := h.service.ListBatches(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list closure batches", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if batches == nil {
		batches = []Batch{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
			return
		}
		h.logger.Error("get history record", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if raw := q.Get("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, errors.New("invalid batch_id")
		}
		filters.BatchID = &id
	}
	if raw := q.Get("employer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, errors.New("invalid employer_id")
		}
		filters.EmployerID = &id
	}
	if raw := q.Get("period_end"); raw != "" {
		d, err := payroll.ParseDate(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.PeriodEnd = &d
	}
	return filters, nil
}
