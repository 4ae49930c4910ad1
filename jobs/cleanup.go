package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/paycycle/paycycle/internal/jobs"
	"github.com/paycycle/paycycle/internal/shared"
)

// Idempotency keys only guard short retry windows; anything older than
// a day is noise.
const idempotencyRetention = 24 * time.Hour

// IdempotencyCleanupJob prunes expired idempotency keys.
type IdempotencyCleanupJob struct {
	Store   *shared.IdempotencyStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	if err := j.Store.Cleanup(ctx, idempotencyRetention); err != nil {
		j.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("idempotency keys pruned")
	return tracker.End(nil)
}
