package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paycycle/paycycle/internal/audit"
	"github.com/paycycle/paycycle/internal/auth"
	"github.com/paycycle/paycycle/internal/employees"
	"github.com/paycycle/paycycle/internal/employers"
	"github.com/paycycle/paycycle/internal/integrations/teamwork"
	"github.com/paycycle/paycycle/internal/integrations/xero"
	"github.com/paycycle/paycycle/internal/observability"
	"github.com/paycycle/paycycle/internal/payroll"
	closurehttp "github.com/paycycle/paycycle/internal/payroll/closure/http"
	historyhttp "github.com/paycycle/paycycle/internal/payroll/history"
	"github.com/paycycle/paycycle/internal/payroll/payslips"
	"github.com/paycycle/paycycle/internal/rbac"
	"github.com/paycycle/paycycle/internal/shared"
	"github.com/paycycle/paycycle/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware

	AuthHandler      *auth.Handler
	PayrollHandler   *payroll.Handler
	ClosureHandler   *closurehttp.Handler
	HistoryHandler   *historyhttp.Handler
	EmployerHandler  *employers.Handler
	EmployeeHandler  *employees.Handler
	AuditHandler     *audit.Handler
	RolesHandler     *rbac.Handler
	XeroHandler      *xero.Handler
	TeamworkHandler  *teamwork.Handler
	PayslipHandler   *payslips.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)
	r.Route("/payroll", func(r chi.Router) {
		params.ClosureHandler.MountRoutes(r)
		params.PayrollHandler.MountRoutes(r)
	})
	r.Route("/payroll-history", params.HistoryHandler.MountRoutes)
	r.Route("/employers", params.EmployerHandler.MountRoutes)
	r.Route("/employees", params.EmployeeHandler.MountRoutes)
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		params.RolesHandler.MountRoutes(r)
	}
	if params.XeroHandler != nil {
		params.XeroHandler.MountRoutes(r)
	}
	if params.TeamworkHandler != nil {
		params.TeamworkHandler.MountRoutes(r)
	}
	if params.PayslipHandler != nil {
		r.Route("/payslips", params.PayslipHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAll("users.manage"))
		r.Post("/users", params.AuthHandler.RegisterUser)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
