package payroll

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
	"github.com/paycycle/paycycle/internal/shared"
)

// Handler exposes the active ledger JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers HTTP routes. Scoped with a group so sibling
// routes on the same subrouter keep their own permission checks.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("payroll.read", "payroll.write"))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll("payroll.write"))
			r.Post("/", h.importRecords)
			r.Patch("/{id}", h.patch)
			r.Delete("/{id}", h.delete)
		})
	})
}

type importRequest struct {
	Records []CreateInput `json:"records"`
}

func (h *Handler) importRecords(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	records, err := h.service.Import(r.Context(), req.Records, currentUser(r), r.Header.Get("Idempotency-Key"))
	if err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Warn("import payroll records", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"records": records})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	records, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list payroll records", slog.Any("error", err))
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
		h.logger.Error("get payroll record", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	var patch FieldPatch
	if err := httpx.DecodeJSONStrict(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown or malformed patch field")
		return
	}
	rec, err := h.service.Patch(r.Context(), id, patch, currentUser(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
		case errors.Is(err, ErrEmptyPatch):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Warn("patch payroll record", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	if err := h.service.Delete(r.Context(), id, currentUser(r)); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
			return
		}
		h.logger.Error("delete payroll record", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if raw := q.Get("employer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, errors.New("invalid employer_id")
		}
		filters.EmployerID = &id
	}
	if raw := q.Get("employee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, errors.New("invalid employee_id")
		}
		filters.EmployeeID = &id
	}
	if raw := q.Get("period_to_from"); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.PeriodToFrom = &d
	}
	if raw := q.Get("period_to_upto"); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.PeriodToUpTo = &d
	}
	return filters, nil
}

func currentUser(r *http.Request) int64 {
	return shared.UserID(r.Context())
}
