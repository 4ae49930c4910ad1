package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/paycycle/paycycle/internal/jobs"
	"github.com/paycycle/paycycle/internal/payroll/history"
)

// ReconcileJob scans for records present in both the active and the
// historical ledger. A non-empty scan means a closure crashed between
// archive and delete and was never retried.
type ReconcileJob struct {
	Pool    *pgxpool.Pool
	History *history.Repository
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileJob initialises the reconciliation handler.
func NewReconcileJob(pool *pgxpool.Pool, hist *history.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Pool: pool, History: hist, Logger: logger, Metrics: metrics}
}

// Handle processes TaskReconcile tasks.
func (j *ReconcileJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pool == nil || j.History == nil {
		return errors.New("reconcile: handler not configured")
	}
	tracker := j.Metrics.Track(TaskReconcile)

	employerIDs, err := j.employerIDs(ctx)
	if err != nil {
		return tracker.End(err)
	}

	var totalDuplicates int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, employerID := range employerIDs {
		g.Go(func() error {
			ids, err := j.History.ActiveOriginals(gctx, employerID)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return nil
			}
			atomic.AddInt64(&totalDuplicates, int64(len(ids)))
			j.Metrics.AddDuplicates(employerID.String(), len(ids))
			j.Logger.Warn("records present in both ledgers",
				slog.String("employer_id", employerID.String()),
				slog.Int("count", len(ids)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		j.Logger.Error("reconcile scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	j.Logger.Info("ledger reconciliation complete",
		slog.Int("employers", len(employerIDs)),
		slog.Int64("duplicates", atomic.LoadInt64(&totalDuplicates)))
	return tracker.End(nil)
}

func (j *ReconcileJob) employerIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := j.Pool.Query(ctx, `SELECT id FROM employers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
