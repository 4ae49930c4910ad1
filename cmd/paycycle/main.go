package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/paycycle/paycycle/internal/app"
	"github.com/paycycle/paycycle/internal/audit"
	"github.com/paycycle/paycycle/internal/auth"
	"github.com/paycycle/paycycle/internal/employees"
	"github.com/paycycle/paycycle/internal/employers"
	"github.com/paycycle/paycycle/internal/integrations/storage"
	"github.com/paycycle/paycycle/internal/integrations/teamwork"
	"github.com/paycycle/paycycle/internal/integrations/xero"
	"github.com/paycycle/paycycle/internal/observability"
	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/payroll/closure"
	closurehttp "github.com/paycycle/paycycle/internal/payroll/closure/http"
	"github.com/paycycle/paycycle/internal/payroll/history"
	"github.com/paycycle/paycycle/internal/payroll/payslips"
	"github.com/paycycle/paycycle/internal/platform/cache"
	"github.com/paycycle/paycycle/internal/platform/db"
	"github.com/paycycle/paycycle/internal/rbac"
	"github.com/paycycle/paycycle/internal/shared"
	"github.com/paycycle/paycycle/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.MigrateOnStart {
		if err := db.Migrate(db.MigrateDSN(cfg.PGDSN), logger); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "paycycle_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	rolesHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	metrics := observability.NewMetrics()

	payrollRepo := payroll.NewRepository(dbpool)
	payrollService := payroll.NewService(payrollRepo, auditLogger, idempotencyStore, logger)
	payrollHandler := payroll.NewHandler(logger, payrollService, rbacMiddleware)

	historyRepo := history.NewRepository(dbpool)
	historyHandler := history.NewHandler(logger, history.NewService(historyRepo), rbacMiddleware)

	locker := closure.NewRedisLocker(redisClient, cfg.ClosureLockTTL)
	closureService := closure.NewService(payrollRepo, historyRepo, locker, auditLogger, logger)
	closureService.WithMetrics(metrics)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewClosureNotifier(jobClient, cfg.ClosureNotifyTo)
	closureHandler := closurehttp.NewHandler(logger, closureService, rbacMiddleware, notifier)

	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware)

	employerHandler := employers.NewHandler(logger, employers.NewService(employers.NewRepository(dbpool)), rbacMiddleware)
	employeeHandler := employees.NewHandler(logger, employees.NewService(employees.NewRepository(dbpool)), rbacMiddleware)

	var xeroHandler *xero.Handler
	if cfg.XeroClientID != "" {
		xeroClient := xero.NewClient(cfg.XeroClientID, cfg.XeroClientSecret, cfg.XeroRedirectURL, dbpool)
		xeroHandler = xero.NewHandler(logger, xeroClient, rbacMiddleware)
	}

	var teamworkHandler *teamwork.Handler
	if cfg.TeamworkBaseURL != "" {
		teamworkHandler = teamwork.NewHandler(logger, teamwork.NewClient(cfg.TeamworkBaseURL, cfg.TeamworkAPIToken), rbacMiddleware)
	}

	var payslipHandler *payslips.Handler
	if cfg.StorageBaseURL != "" {
		store := storage.NewClient(cfg.StorageBaseURL, cfg.StorageBucket, cfg.StorageServiceKey)
		payslipHandler = payslips.NewHandler(logger, store, rbacMiddleware)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,

		AuthHandler:     authHandler,
		PayrollHandler:  payrollHandler,
		ClosureHandler:  closureHandler,
		HistoryHandler:  historyHandler,
		EmployerHandler: employerHandler,
		EmployeeHandler: employeeHandler,
		AuditHandler:    auditHandler,
		RolesHandler:    rolesHandler,
		XeroHandler:     xeroHandler,
		TeamworkHandler: teamworkHandler,
		PayslipHandler:  payslipHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
