// Package closurehttp wires the closure engine to the JSON API.
package closurehttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/payroll/closure"
	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
	"github.com/paycycle/paycycle/internal/shared"
)

type closureService interface {
	ClosePeriods(ctx context.Context, in closure.ClosePeriodsInput) (closure.Summary, error)
}

// Notifier is told about completed closure batches; failures to notify
// never fail the closure itself.
type Notifier interface {
	ClosureCompleted(ctx context.Context, summary closure.Summary) error
}

// Handler exposes the closure endpoint.
type Handler struct {
	logger    *slog.Logger
	service   closureService
	rbac      rbac.Middleware
	notifier  Notifier
	validator *validator.Validate
}

// NewHandler constructs a Handler. The notifier may be nil.
func NewHandler(logger *slog.Logger, service closureService, rbac rbac.Middleware, notifier Notifier) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbac,
		notifier:  notifier,
		validator: validator.New(),
	}
}

// MountRoutes registers HTTP routes on the payroll subrouter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/close", func(r chi.Router) {
		r.Use(h.rbac.RequireAll("payroll.close"))
		r.Post("/", h.closePeriods)
	})
}

type closeRequest struct {
	PeriodEndDates []string `json:"period_end_dates" validate:"required,min=1,dive,datetime=2006-01-02"`
	Notes          *string  `json:"notes"`
}

type closeResponse struct {
	Success bool            `json:"success"`
	Summary closure.Summary `json:"summary"`
}

func (h *Handler) closePeriods(w http.ResponseWriter, r *http.Request) {
	actorID := currentUser(r)
	if actorID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no periods selected")
		return
	}

	periodEnds := make([]payroll.Date, 0, len(req.PeriodEndDates))
	for _, raw := range req.PeriodEndDates {
		d, err := payroll.ParseDate(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		periodEnds = append(periodEnds, d)
	}

	summary, err := h.service.ClosePeriods(r.Context(), closure.ClosePeriodsInput{
		PeriodEnds: periodEnds,
		Notes:      req.Notes,
		ActorID:    &actorID,
	})
	if err != nil {
		h.respondClosureError(w, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.ClosureCompleted(r.Context(), summary); err != nil {
			h.logger.Warn("enqueue closure notification", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusOK, closeResponse{Success: true, Summary: summary})
}

func (h *Handler) respondClosureError(w http.ResponseWriter, err error) {
	var perPeriod *closure.Error
	switch {
	case errors.Is(err, closure.ErrNoPeriodsSelected):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no periods selected")
	case errors.Is(err, closure.ErrPeriodLocked):
		h.logger.Warn("closure lock conflict", slog.Any("error", err))
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &perPeriod):
		h.logger.Error("pay period closure failed",
			slog.String("period_end", perPeriod.PeriodEnd.String()),
			slog.Any("error", perPeriod.Err))
		httpx.Problem(w, http.StatusInternalServerError, "Closure Failed", perPeriod.Error())
	default:
		h.logger.Error("pay period closure failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Closure Failed", "")
	}
}

func currentUser(r *http.Request) int64 {
	return shared.UserID(r.Context())
}
