// Package jobs contains background task definitions and the worker
// runtime that processes them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/paycycle/paycycle/internal/payroll/closure"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskClosureNotify emails the summary of a completed closure batch.
	TaskClosureNotify = "payroll:closure_notify"
	// TaskReconcile scans for records present in both ledgers.
	TaskReconcile = "payroll:reconcile"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ClosureNotifyPayload carries a completed closure summary to the mailer.
type ClosureNotifyPayload struct {
	Summary    closure.Summary `json:"summary"`
	Recipients []string        `json:"recipients"`
}

// NewClosureNotifyTask constructs a closure notification task.
func NewClosureNotifyTask(payload ClosureNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClosureNotify, data), nil
}

// NewReconcileTask constructs a ledger reconciliation task.
func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskReconcile, nil)
}

// NewIdempotencyCleanupTask constructs a key cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
