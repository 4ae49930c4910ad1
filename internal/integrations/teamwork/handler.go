package teamwork

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
)

// ProjectsAPI is the Teamwork surface the handler consumes.
type ProjectsAPI interface {
	ListProjects(ctx context.Context) ([]Project, error)
	LogTime(ctx context.Context, projectID string, entry TimeEntry) error
}

// Handler exposes Teamwork project lookup and time logging.
type Handler struct {
	logger    *slog.Logger
	client    ProjectsAPI
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, client ProjectsAPI, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, client: client, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/integrations/teamwork", func(r chi.Router) {
		r.Use(h.rbac.RequireAll("integrations.manage"))
		r.Get("/projects", h.listProjects)
		r.Post("/time", h.logTime)
	})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.client.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("list teamwork projects", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Integration Unavailable", "teamwork request failed")
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": projects})
}

type logTimeRequest struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=20060102"`
	Hours       int    `json:"hours" validate:"min=0"`
	Minutes     int    `json:"minutes" validate:"min=0,max=59"`
	IsBillable  bool   `json:"is_billable"`
}

func (h *Handler) logTime(w http.ResponseWriter, r *http.Request) {
	var req logTimeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid time entry")
		return
	}
	entry := TimeEntry{
		Description: req.Description,
		Date:        req.Date,
		Hours:       req.Hours,
		Minutes:     req.Minutes,
		IsBillable:  req.IsBillable,
	}
	if err := h.client.LogTime(r.Context(), req.ProjectID, entry); err != nil {
		h.logger.Error("log teamwork time", slog.String("project_id", req.ProjectID), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Integration Unavailable", "teamwork request failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
