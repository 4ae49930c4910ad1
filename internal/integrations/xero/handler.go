package xero

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
)

// Handler exposes the connect/callback flow.
type Handler struct {
	logger *slog.Logger
	client *Client
	rbac   rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, client *Client, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, client: client, rbac: rbac}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/integrations/xero", func(r chi.Router) {
		r.Use(h.rbac.RequireAll("integrations.manage"))
		r.Get("/connect", h.connect)
		r.Get("/callback", h.callback)
		r.Delete("/{employerID}", h.disconnect)
	})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	employerID, err := uuid.Parse(r.URL.Query().Get("employer_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employer id")
		return
	}
	// The employer id rides along as OAuth state so the callback can
	// attribute the tokens.
	httpx.JSON(w, http.StatusOK, map[string]string{
		"authorize_url": h.client.AuthorizeURL(employerID.String()),
	})
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	employerID, err := uuid.Parse(r.URL.Query().Get("state"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing authorization code")
		return
	}
	if err := h.client.ExchangeAndStore(r.Context(), employerID, code); err != nil {
		h.logger.Error("xero code exchange", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Integration Error", "could not complete Xero connection")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	employerID, err := uuid.Parse(chi.URLParam(r, "employerID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employer id")
		return
	}
	if err := h.client.Disconnect(r.Context(), employerID); err != nil {
		if errors.Is(err, ErrNotConnected) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "employer is not connected")
			return
		}
		h.logger.Error("xero disconnect", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
