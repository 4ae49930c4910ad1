// Package mail sends operational email through Resend.
package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/paycycle/paycycle/internal/payroll/closure"
)

// Mailer sends operational messages.
type Mailer interface {
	SendClosureSummary(ctx context.Context, to []string, summary closure.Summary) error
}

// ResendMailer implements Mailer with the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer constructs a ResendMailer.
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

// SendClosureSummary emails the outcome of a completed closure batch.
func (m *ResendMailer) SendClosureSummary(ctx context.Context, to []string, summary closure.Summary) error {
	if len(to) == 0 {
		return nil
	}
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      to,
		Subject: fmt.Sprintf("Payroll closure complete: %d records archived", summary.TotalRecordsMoved),
		Html:    renderClosureSummary(summary),
	})
	if err != nil {
		return fmt.Errorf("mail: send closure summary: %w", err)
	}
	return nil
}

func renderClosureSummary(summary closure.Summary) string {
	periods := make([]string, 0, len(summary.RecordsByPeriod))
	for period := range summary.RecordsByPeriod {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Pay period closure %s</h2>", summary.ClosureBatchID)
	fmt.Fprintf(&b, "<p>Closed at %s. %d records moved to history.</p>",
		summary.ClosedAt.Format("2006-01-02 15:04 MST"), summary.TotalRecordsMoved)
	b.WriteString("<ul>")
	for _, period := range periods {
		fmt.Fprintf(&b, "<li>%s: %d records</li>", period, summary.RecordsByPeriod[period])
	}
	b.WriteString("</ul>")
	if summary.Notes != nil && *summary.Notes != "" {
		fmt.Fprintf(&b, "<p>Notes: %s</p>", *summary.Notes)
	}
	return b.String()
}
