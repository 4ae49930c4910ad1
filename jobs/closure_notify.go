package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/paycycle/paycycle/internal/jobs"
	"github.com/paycycle/paycycle/internal/mail"
)

// ClosureNotifyJob emails closure batch summaries to the practice team.
type ClosureNotifyJob struct {
	Mailer  mail.Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewClosureNotifyJob initialises the notification handler.
func NewClosureNotifyJob(mailer mail.Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ClosureNotifyJob {
	return &ClosureNotifyJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskClosureNotify tasks.
func (j *ClosureNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("closure notify: handler not configured")
	}
	var payload ClosureNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskClosureNotify)
	err := j.Mailer.SendClosureSummary(ctx, payload.Recipients, payload.Summary)
	if err != nil {
		j.Logger.Error("closure notify failed",
			slog.String("batch_id", payload.Summary.ClosureBatchID.String()),
			slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("closure summary sent",
		slog.String("batch_id", payload.Summary.ClosureBatchID.String()),
		slog.Int("recipients", len(payload.Recipients)))
	return tracker.End(nil)
}
