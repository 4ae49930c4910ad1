// Package payslips serves payslip documents stored in the practice's
// object store, keyed by employee and pay period end.
package payslips

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/platform/httpx"
	"github.com/paycycle/paycycle/internal/rbac"
)

const (
	maxUploadBytes   = 10 << 20
	signedURLExpiry  = time.Hour
	payslipMediaType = "application/pdf"
)

// ObjectStore is the storage surface payslips need.
type ObjectStore interface {
	Upload(ctx context.Context, path, contentType string, content io.Reader) error
	SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)
	Remove(ctx context.Context, path string) error
}

// Handler exposes payslip upload and download routes.
type Handler struct {
	logger *slog.Logger
	store  ObjectStore
	rbac   rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store ObjectStore, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, store: store, rbac: rbac}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny("payroll.read", "payroll.write"))
	r.Get("/{employeeID}/{periodEnd}", h.download)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("payroll.write"))
		r.Put("/{employeeID}/{periodEnd}", h.upload)
		r.Delete("/{employeeID}/{periodEnd}", h.remove)
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	path, ok := h.objectPath(w, r)
	if !ok {
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := h.store.Upload(r.Context(), path, payslipMediaType, body); err != nil {
		h.logger.Error("upload payslip", slog.String("path", path), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Storage Unavailable", "payslip upload failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"path": path})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	path, ok := h.objectPath(w, r)
	if !ok {
		return
	}
	url, err := h.store.SignedURL(r.Context(), path, signedURLExpiry)
	if err != nil {
		h.logger.Error("sign payslip url", slog.String("path", path), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Storage Unavailable", "payslip link unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	path, ok := h.objectPath(w, r)
	if !ok {
		return
	}
	if err := h.store.Remove(r.Context(), path); err != nil {
		h.logger.Error("remove payslip", slog.String("path", path), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Storage Unavailable", "payslip removal failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// objectPath validates the route params and builds the object key. The
// period end is parsed so arbitrary path segments never reach storage.
func (h *Handler) objectPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	employeeID, err := uuid.Parse(chi.URLParam(r, "employeeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employee id")
		return "", false
	}
	periodEnd, err := payroll.ParseDate(chi.URLParam(r, "periodEnd"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period end date")
		return "", false
	}
	return employeeID.String() + "/" + periodEnd.String() + ".pdf", true
}
