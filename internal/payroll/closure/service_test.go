package closure_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/payroll/closure"
	"github.com/paycycle/paycycle/internal/payroll/history"
	"github.com/paycycle/paycycle/internal/shared"
	_ "github.com/paycycle/paycycle/testing"
)

type fakeActiveLedger struct {
	records    map[uuid.UUID]payroll.Record
	listErr    map[string]error
	deleteErr  error
	deleteSeen [][]uuid.UUID
}

func newFakeActiveLedger() *fakeActiveLedger {
	return &fakeActiveLedger{
		records: make(map[uuid.UUID]payroll.Record),
		listErr: make(map[string]error),
	}
}

func (f *fakeActiveLedger) add(rec payroll.Record) {
	f.records[rec.ID] = rec
}

func (f *fakeActiveLedger) ListByPeriodEnd(_ context.Context, periodEnd payroll.Date) ([]payroll.Record, error) {
	if err := f.listErr[periodEnd.String()]; err != nil {
		return nil, err
	}
	var out []payroll.Record
	for _, rec := range f.records {
		if rec.PayPeriodTo.Equal(periodEnd) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeActiveLedger) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleteSeen = append(f.deleteSeen, ids)
	var n int64
	for _, id := range ids {
		if _, ok := f.records[id]; ok {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

type fakeHistoryLedger struct {
	byOriginal map[uuid.UUID]history.Record
	insertErr  map[string]error
}

func newFakeHistoryLedger() *fakeHistoryLedger {
	return &fakeHistoryLedger{
		byOriginal: make(map[uuid.UUID]history.Record),
		insertErr:  make(map[string]error),
	}
}

func (f *fakeHistoryLedger) InsertBatch(_ context.Context, records []history.Record) (int64, error) {
	if len(records) > 0 {
		if err := f.insertErr[records[0].PayPeriodTo.String()]; err != nil {
			return 0, err
		}
	}
	var inserted int64
	for _, rec := range records {
		// Re-archiving the same original row is a silent no-op, matching
		// the unique constraint on original_id.
		if _, ok := f.byOriginal[rec.OriginalID]; ok {
			continue
		}
		f.byOriginal[rec.OriginalID] = rec
		inserted++
	}
	return inserted, nil
}

type fakeAuditor struct {
	logs []shared.AuditLog
}

func (f *fakeAuditor) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeLocker struct {
	err      error
	acquired []string
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, key string) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return func() { f.released++ }, nil
}

func mustDate(t *testing.T, raw string) payroll.Date {
	t.Helper()
	d, err := payroll.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func testRecord(t *testing.T, periodEnd string, gross float64) payroll.Record {
	t.Helper()
	to := mustDate(t, periodEnd)
	return payroll.Record{
		ID:            uuid.New(),
		EmployerID:    uuid.New(),
		EmployeeID:    uuid.New(),
		PayPeriodFrom: payroll.Date{Time: to.AddDate(0, -1, 1)},
		PayPeriodTo:   to,
		Currency:      "GBP",
		GrossPay:      decimal.NewNullDecimal(decimal.NewFromFloat(gross)),
		NetPay:        decimal.NewNullDecimal(decimal.NewFromFloat(gross * 0.7)),
	}
}

func newTestService(active *fakeActiveLedger, archive *fakeHistoryLedger, locker closure.Locker, audit *fakeAuditor) *closure.Service {
	var auditor closure.Auditor
	if audit != nil {
		auditor = audit
	}
	svc := closure.NewService(active, archive, locker, auditor, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time {
		return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	})
	return svc
}

func TestClosePeriodsMovesMatchingRecords(t *testing.T) {
	active := newFakeActiveLedger()
	archive := newFakeHistoryLedger()
	audit := &fakeAuditor{}

	jan := []payroll.Record{
		testRecord(t, "2024-01-31", 3200),
		testRecord(t, "2024-01-31", 2800),
		testRecord(t, "2024-01-31", 4100),
	}
	feb := []payroll.Record{
		testRecord(t, "2024-02-29", 3300),
		testRecord(t, "2024-02-29", 2950),
	}
	mar := testRecord(t, "2024-03-31", 5000)
	for _, rec := range jan {
		active.add(rec)
	}
	for _, rec := range feb {
		active.add(rec)
	}
	active.add(mar)

	svc := newTestService(active, archive, nil, audit)
	actor := int64(7)

	summary, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{mustDate(t, "2024-01-31"), mustDate(t, "2024-02-29")},
		ActorID:    &actor,
	})
	require.NoError(t, err)
	require.Equal(t, 5, summary.TotalRecordsMoved)
	require.Equal(t, 3, summary.RecordsByPeriod["2024-01-31"])
	require.Equal(t, 2, summary.RecordsByPeriod["2024-02-29"])
	require.NotEqual(t, uuid.Nil, summary.ClosureBatchID)

	// Only the untouched March record survives in the active ledger.
	require.Len(t, active.records, 1)
	_, ok := active.records[mar.ID]
	require.True(t, ok)

	require.Len(t, archive.byOriginal, 5)
	for _, rec := range append(jan, feb...) {
		archived, ok := archive.byOriginal[rec.ID]
		require.True(t, ok)
		require.Equal(t, rec.ID, archived.OriginalID)
		require.NotEqual(t, rec.ID, archived.ID)
		require.Equal(t, rec.EmployeeID, archived.EmployeeID)
		require.True(t, rec.GrossPay.Decimal.Equal(archived.GrossPay.Decimal))
		require.Equal(t, summary.ClosureBatchID, archived.ClosureBatchID)
		require.Equal(t, summary.ClosedAt, archived.ClosedAt)
		require.NotNil(t, archived.ClosedByUserID)
		require.Equal(t, actor, *archived.ClosedByUserID)
	}

	require.Len(t, audit.logs, 1)
	require.Equal(t, "payroll.close", audit.logs[0].Action)
	require.Equal(t, summary.ClosureBatchID.String(), audit.logs[0].EntityID)
}

func TestClosePeriodsEmptyPeriod(t *testing.T) {
	active := newFakeActiveLedger()
	active.add(testRecord(t, "2024-01-31", 3000))
	archive := newFakeHistoryLedger()

	svc := newTestService(active, archive, nil, nil)

	summary, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{mustDate(t, "2099-12-31")},
	})
	require.NoError(t, err)
	require.Equal(t, 0, summary.TotalRecordsMoved)
	require.Equal(t, 0, summary.RecordsByPeriod["2099-12-31"])
	require.Len(t, active.records, 1)
	require.Empty(t, archive.byOriginal)
}

func TestClosePeriodsRejectsEmptySelection(t *testing.T) {
	svc := newTestService(newFakeActiveLedger(), newFakeHistoryLedger(), nil, nil)

	_, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{})
	require.ErrorIs(t, err, closure.ErrNoPeriodsSelected)
}

func TestClosePeriodsSharedBatchIdentity(t *testing.T) {
	active := newFakeActiveLedger()
	archive := newFakeHistoryLedger()
	active.add(testRecord(t, "2024-01-31", 3100))
	active.add(testRecord(t, "2024-02-29", 3200))

	svc := newTestService(active, archive, nil, nil)

	summary, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{mustDate(t, "2024-01-31"), mustDate(t, "2024-02-29")},
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), summary.ClosedAt)

	for _, archived := range archive.byOriginal {
		require.Equal(t, summary.ClosureBatchID, archived.ClosureBatchID)
		require.Equal(t, summary.ClosedAt, archived.ClosedAt)
		// A system-initiated closure carries no closing user.
		require.Nil(t, archived.ClosedByUserID)
	}
}

func TestClosePeriodsArchiveFailureAborts(t *testing.T) {
	active := newFakeActiveLedger()
	archive := newFakeHistoryLedger()
	jan := testRecord(t, "2024-01-31", 3000)
	feb := testRecord(t, "2024-02-29", 3100)
	active.add(jan)
	active.add(feb)
	archive.insertErr["2024-02-29"] = errors.New("history insert: connection reset")

	svc := newTestService(active, archive, nil, nil)

	_, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{mustDate(t, "2024-01-31"), mustDate(t, "2024-02-29")},
	})
	require.Error(t, err)

	var perPeriod *closure.Error
	require.ErrorAs(t, err, &perPeriod)
	require.Equal(t, "2024-02-29", perPeriod.PeriodEnd.String())
	require.Equal(t, closure.PeriodFetched, perPeriod.State)

	// January completed before the failure and stays closed.
	_, janActive := active.records[jan.ID]
	require.False(t, janActive)
	_, janArchived := archive.byOriginal[jan.ID]
	require.True(t, janArchived)

	// February was never touched.
	_, febActive := active.records[feb.ID]
	require.True(t, febActive)
	_, febArchived := archive.byOriginal[feb.ID]
	require.False(t, febArchived)
}

func TestClosePeriodsDeleteFailureKeepsBothCopies(t *testing.T) {
	active := newFakeActiveLedger()
	archive := newFakeHistoryLedger()
	rec := testRecord(t, "2024-01-31", 3000)
	active.add(rec)
	active.deleteErr = errors.New("delete: connection reset")

	svc := newTestService(active, archive, nil, nil)
	period := mustDate(t, "2024-01-31")

	_, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{period},
	})
	var perPeriod *closure.Error
	require.ErrorAs(t, err, &perPeriod)
	require.Equal(t, closure.PeriodArchived, perPeriod.State)

	// The record is duplicated across both ledgers, never lost.
	_, stillActive := active.records[rec.ID]
	require.True(t, stillActive)
	_, archived := archive.byOriginal[rec.ID]
	require.True(t, archived)

	// Retrying after the fault clears converges without duplicating the
	// archived row.
	active.deleteErr = nil
	summary, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{period},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalRecordsMoved)
	require.Empty(t, active.records)
	require.Len(t, archive.byOriginal, 1)
}

func TestClosePeriodsRecloseIsNoOp(t *testing.T) {
	active := newFakeActiveLedger()
	archive := newFakeHistoryLedger()
	active.add(testRecord(t, "2024-01-31", 3000))
	period := mustDate(t, "2024-01-31")

	svc := newTestService(active, archive, nil, nil)

	first, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{period},
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalRecordsMoved)

	second, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{period},
	})
	require.NoError(t, err)
	require.Equal(t, 0, second.TotalRecordsMoved)
	require.NotEqual(t, first.ClosureBatchID, second.ClosureBatchID)
	require.Len(t, archive.byOriginal, 1)
}

func TestClosePeriodsLockConflict(t *testing.T) {
	active := newFakeActiveLedger()
	active.add(testRecord(t, "2024-01-31", 3000))
	locker := &fakeLocker{err: closure.ErrPeriodLocked}

	svc := newTestService(active, newFakeHistoryLedger(), locker, nil)

	_, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{mustDate(t, "2024-01-31")},
	})
	require.ErrorIs(t, err, closure.ErrPeriodLocked)
	require.Len(t, active.records, 1)
}

func TestClosePeriodsReleasesLocks(t *testing.T) {
	active := newFakeActiveLedger()
	active.add(testRecord(t, "2024-01-31", 3000))
	active.add(testRecord(t, "2024-02-29", 3100))
	locker := &fakeLocker{}

	svc := newTestService(active, newFakeHistoryLedger(), locker, nil)

	_, err := svc.ClosePeriods(context.Background(), closure.ClosePeriodsInput{
		PeriodEnds: []payroll.Date{mustDate(t, "2024-01-31"), mustDate(t, "2024-02-29")},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		shared.PeriodLockKey("2024-01-31"),
		shared.PeriodLockKey("2024-02-29"),
	}, locker.acquired)
	require.Equal(t, 2, locker.released)
}
