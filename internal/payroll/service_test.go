package payroll_test

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
	"github.com/paycycle/paycycle/internal/shared"
	_ "github.com/paycycle/paycycle/testing"
)

type fakeRepo struct {
	records   map[uuid.UUID]payroll.Record
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]payroll.Record)}
}

func (f *fakeRepo) Insert(_ context.Context, inputs []payroll.CreateInput) ([]payroll.Record, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	out := make([]payroll.Record, 0, len(inputs))
	for _, in := range inputs {
		rec := payroll.Record{
			ID:            uuid.New(),
			EmployerID:    in.EmployerID,
			EmployeeID:    in.EmployeeID,
			PayPeriodFrom: in.PayPeriodFrom,
			PayPeriodTo:   in.PayPeriodTo,
			Currency:      in.Currency,
			GrossPay:      in.GrossPay,
			NetPay:        in.NetPay,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if rec.Currency == "" {
			rec.Currency = "GBP"
		}
		f.records[rec.ID] = rec
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (payroll.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return payroll.Record{}, payroll.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeRepo) List(_ context.Context, filters payroll.ListFilters) ([]payroll.Record, int, error) {
	var out []payroll.Record
	for _, rec := range f.records {
		if filters.EmployerID != nil && rec.EmployerID != *filters.EmployerID {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (f *fakeRepo) UpdateFields(_ context.Context, id uuid.UUID, patch payroll.FieldPatch) (payroll.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return payroll.Record{}, payroll.ErrRecordNotFound
	}
	if patch.Currency != nil {
		rec.Currency = *patch.Currency
	}
	if patch.GrossPay != nil {
		rec.GrossPay = decimal.NewNullDecimal(*patch.GrossPay)
	}
	if patch.PayPeriodTo != nil {
		rec.PayPeriodTo = *patch.PayPeriodTo
	}
	f.records[id] = rec
	return rec, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return payroll.ErrRecordNotFound
	}
	delete(f.records, id)
	return nil
}

type fakeGuard struct {
	keys    map[string]bool
	deleted []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{keys: make(map[string]bool)}
}

func (f *fakeGuard) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeGuard) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeAuditor struct {
	logs []shared.AuditLog
}

func (f *fakeAuditor) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validInput(t *testing.T) payroll.CreateInput {
	t.Helper()
	from, err := payroll.ParseDate("2024-01-01")
	require.NoError(t, err)
	to, err := payroll.ParseDate("2024-01-31")
	require.NoError(t, err)
	return payroll.CreateInput{
		EmployerID:    uuid.New(),
		EmployeeID:    uuid.New(),
		PayPeriodFrom: from,
		PayPeriodTo:   to,
		Currency:      "GBP",
		GrossPay:      decimal.NewNullDecimal(decimal.NewFromInt(3200)),
		NetPay:        decimal.NewNullDecimal(decimal.NewFromInt(2500)),
	}
}

func TestImportPersistsValidRows(t *testing.T) {
	repo := newFakeRepo()
	audit := &fakeAuditor{}
	svc := payroll.NewService(repo, audit, newFakeGuard(), testLogger())

	records, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t), validInput(t)}, 7, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, repo.records, 2)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "payroll.import", audit.logs[0].Action)
}

func TestImportRejectsInvalidRow(t *testing.T) {
	repo := newFakeRepo()
	svc := payroll.NewService(repo, nil, nil, testLogger())

	bad := validInput(t)
	bad.EmployeeID = uuid.Nil

	_, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t), bad}, 7, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "row 2")
	require.Empty(t, repo.records)
}

func TestImportRejectsReversedPeriod(t *testing.T) {
	svc := payroll.NewService(newFakeRepo(), nil, nil, testLogger())

	bad := validInput(t)
	bad.PayPeriodFrom, bad.PayPeriodTo = bad.PayPeriodTo, bad.PayPeriodFrom

	_, err := svc.Import(context.Background(), []payroll.CreateInput{bad}, 7, "")
	require.Error(t, err)
}

func TestImportDuplicateKeyConflicts(t *testing.T) {
	repo := newFakeRepo()
	guard := newFakeGuard()
	svc := payroll.NewService(repo, nil, guard, testLogger())

	_, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "batch-2024-01")
	require.NoError(t, err)

	_, err = svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "batch-2024-01")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.records, 1)
}

func TestImportReleasesKeyOnStoreFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.insertErr = errors.New("insert: connection reset")
	guard := newFakeGuard()
	svc := payroll.NewService(repo, nil, guard, testLogger())

	_, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "batch-2024-01")
	require.Error(t, err)
	require.Equal(t, []string{"batch-2024-01"}, guard.deleted)

	// The same key is usable on retry.
	repo.insertErr = nil
	_, err = svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "batch-2024-01")
	require.NoError(t, err)
}

func TestPatchAppliesAllowListedFields(t *testing.T) {
	repo := newFakeRepo()
	audit := &fakeAuditor{}
	svc := payroll.NewService(repo, audit, nil, testLogger())

	records, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "")
	require.NoError(t, err)

	gross := decimal.NewFromFloat(3400.50)
	eur := "EUR"
	updated, err := svc.Patch(context.Background(), records[0].ID, payroll.FieldPatch{
		GrossPay: &gross,
		Currency: &eur,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, "EUR", updated.Currency)
	require.True(t, updated.GrossPay.Decimal.Equal(gross))
	require.Len(t, audit.logs, 2)
}

func TestPatchRejectsEmptyPatch(t *testing.T) {
	svc := payroll.NewService(newFakeRepo(), nil, nil, testLogger())

	_, err := svc.Patch(context.Background(), uuid.New(), payroll.FieldPatch{}, 7)
	require.ErrorIs(t, err, payroll.ErrEmptyPatch)
}

func TestPatchRejectsUnknownCurrency(t *testing.T) {
	repo := newFakeRepo()
	svc := payroll.NewService(repo, nil, nil, testLogger())

	records, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "")
	require.NoError(t, err)

	bogus := "ZZZ"
	_, err = svc.Patch(context.Background(), records[0].ID, payroll.FieldPatch{Currency: &bogus}, 7)
	require.Error(t, err)
}

func TestDeleteRemovesRecord(t *testing.T) {
	repo := newFakeRepo()
	svc := payroll.NewService(repo, nil, nil, testLogger())

	records, err := svc.Import(context.Background(), []payroll.CreateInput{validInput(t)}, 7, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), records[0].ID, 7))
	require.ErrorIs(t, svc.Delete(context.Background(), records[0].ID, 7), payroll.ErrRecordNotFound)
}
