package jobs

import (
	"context"

	"github.com/paycycle/paycycle/internal/payroll/closure"
)

// ClosureNotifier enqueues notification tasks for completed closure
// batches.
type ClosureNotifier struct {
	client     *Client
	recipients []string
}

// NewClosureNotifier constructs a ClosureNotifier.
func NewClosureNotifier(client *Client, recipients []string) *ClosureNotifier {
	return &ClosureNotifier{client: client, recipients: recipients}
}

// ClosureCompleted queues the summary email.
func (n *ClosureNotifier) ClosureCompleted(ctx context.Context, summary closure.Summary) error {
	if n == nil || n.client == nil || len(n.recipients) == 0 {
		return nil
	}
	_, err := n.client.EnqueueClosureNotify(ctx, ClosureNotifyPayload{
		Summary:    summary,
		Recipients: n.recipients,
	})
	return err
}
