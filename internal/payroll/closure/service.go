package closure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/payroll/history"
	"github.com/paycycle/paycycle/internal/shared"
)

// ActiveLedger is the active store surface the engine consumes.
type ActiveLedger interface {
	ListByPeriodEnd(ctx context.Context, periodEnd payroll.Date) ([]payroll.Record, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// HistoryLedger is the archive store surface the engine consumes.
type HistoryLedger interface {
	InsertBatch(ctx context.Context, records []history.Record) (int64, error)
}

// Auditor records closure invocations.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsRecorder counts closure outcomes.
type MetricsRecorder interface {
	ClosureCompleted(recordsMoved int)
	ClosureFailed(state string)
}

// Service orchestrates pay-period closure.
type Service struct {
	active  ActiveLedger
	archive HistoryLedger
	locker  Locker
	audit   Auditor
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService constructs a Service. The locker may be nil, in which case
// cross-invocation serialisation is the deployment's responsibility.
func NewService(active ActiveLedger, archive HistoryLedger, locker Locker, audit Auditor, logger *slog.Logger) *Service {
	return &Service{
		active:  active,
		archive: archive,
		locker:  locker,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithIDGenerator overrides identity generation for deterministic tests.
func (s *Service) WithIDGenerator(gen func() uuid.UUID) {
	if gen != nil {
		s.newID = gen
	}
}

// WithMetrics attaches closure outcome counters.
func (s *Service) WithMetrics(rec MetricsRecorder) {
	s.metrics = rec
}

// ClosePeriods moves every active record whose pay_period_to matches one
// of the requested dates into the historical ledger under a single batch
// identity, one period at a time, in the order supplied.
//
// Each period archives before it deletes; a crash between the two leaves
// the rows duplicated across both ledgers, never lost. Any per-period
// failure aborts the invocation: periods already completed stay closed
// and no summary is returned.
func (s *Service) ClosePeriods(ctx context.Context, in ClosePeriodsInput) (Summary, error) {
	if err := in.Validate(); err != nil {
		return Summary{}, err
	}

	batchID := s.newID()
	closedAt := s.now().UTC()
	summary := Summary{
		ClosureBatchID:  batchID,
		PeriodEndDates:  in.PeriodEnds,
		RecordsByPeriod: make(map[string]int, len(in.PeriodEnds)),
		ClosedAt:        closedAt,
		Notes:           in.Notes,
	}

	for _, periodEnd := range in.PeriodEnds {
		moved, err := s.closeOnePeriod(ctx, periodEnd, batchID, closedAt, in)
		if err != nil {
			if s.metrics != nil {
				var perPeriod *Error
				if errors.As(err, &perPeriod) {
					s.metrics.ClosureFailed(string(perPeriod.State))
				}
			}
			return Summary{}, err
		}
		summary.RecordsByPeriod[periodEnd.String()] = moved
		summary.TotalRecordsMoved += moved
	}

	if s.metrics != nil {
		s.metrics.ClosureCompleted(summary.TotalRecordsMoved)
	}
	s.recordAudit(ctx, in, summary)
	if s.logger != nil {
		s.logger.Info("pay periods closed",
			slog.String("batch_id", batchID.String()),
			slog.Int("periods", len(in.PeriodEnds)),
			slog.Int("records_moved", summary.TotalRecordsMoved))
	}
	return summary, nil
}

// closeOnePeriod walks one period through fetch, archive, and removal.
func (s *Service) closeOnePeriod(ctx context.Context, periodEnd payroll.Date, batchID uuid.UUID, closedAt time.Time, in ClosePeriodsInput) (int, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.PeriodLockKey(periodEnd.String()))
		if err != nil {
			return 0, &Error{PeriodEnd: periodEnd, State: PeriodPending, Err: err}
		}
		defer release()
	}

	records, err := s.active.ListByPeriodEnd(ctx, periodEnd)
	if err != nil {
		return 0, &Error{PeriodEnd: periodEnd, State: PeriodPending, Err: fmt.Errorf("fetch active records: %w", err)}
	}
	if len(records) == 0 {
		// An empty period is a valid, reportable outcome, not an error.
		return 0, nil
	}

	archived := make([]history.Record, 0, len(records))
	ids := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		archived = append(archived, history.Record{
			ID:              s.newID(),
			OriginalID:      rec.ID,
			EmployerID:      rec.EmployerID,
			EmployeeID:      rec.EmployeeID,
			PayPeriodFrom:   rec.PayPeriodFrom,
			PayPeriodTo:     rec.PayPeriodTo,
			Currency:        rec.Currency,
			GrossPay:        rec.GrossPay,
			IncomeTax:       rec.IncomeTax,
			EmployeeNI:      rec.EmployeeNI,
			EmployerNI:      rec.EmployerNI,
			EmployeePension: rec.EmployeePension,
			EmployerPension: rec.EmployerPension,
			StudentLoan:     rec.StudentLoan,
			NetPay:          rec.NetPay,
			ClosedAt:        closedAt,
			ClosedByUserID:  in.ActorID,
			ClosureBatchID:  batchID,
			ClosureNotes:    in.Notes,
		})
		ids = append(ids, rec.ID)
	}

	// Copy before delete: the archive write must land before any active
	// row disappears.
	if _, err := s.archive.InsertBatch(ctx, archived); err != nil {
		return 0, &Error{PeriodEnd: periodEnd, State: PeriodFetched, Err: fmt.Errorf("archive records: %w", err)}
	}

	deleted, err := s.active.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, &Error{PeriodEnd: periodEnd, State: PeriodArchived, Err: fmt.Errorf("remove active records: %w", err)}
	}
	if deleted != int64(len(ids)) && s.logger != nil {
		s.logger.Warn("closure removed fewer rows than fetched",
			slog.String("period_end", periodEnd.String()),
			slog.Int("fetched", len(ids)),
			slog.Int64("deleted", deleted))
	}

	return len(records), nil
}

func (s *Service) recordAudit(ctx context.Context, in ClosePeriodsInput, summary Summary) {
	if s.audit == nil {
		return
	}
	var actorID int64
	if in.ActorID != nil {
		actorID = *in.ActorID
	}
	periods := make([]string, 0, len(in.PeriodEnds))
	for _, pe := range in.PeriodEnds {
		periods = append(periods, pe.String())
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "payroll.close",
		Entity:   "closure_batch",
		EntityID: summary.ClosureBatchID.String(),
		Meta: map[string]any{
			"period_end_dates":    periods,
			"total_records_moved": summary.TotalRecordsMoved,
		},
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit closure", slog.Any("error", err))
	}
}
