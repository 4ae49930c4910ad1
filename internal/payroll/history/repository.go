package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, original_id, employer_id, employee_id, pay_period_from, pay_period_to,
currency, gross_pay, income_tax, employee_ni, employer_ni, employee_pension, employer_pension,
student_loan, net_pay, closed_at, closed_by_user_id, closure_batch_id, closure_notes`

// Repository provides PostgreSQL backed persistence for the archive.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch appends archive rows in one bulk write. A retry after a
// partial failure skips rows whose original_id is already archived, so
// the returned count may be lower than len(records).
func (r *Repository) InsertBatch(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`INSERT INTO payroll_history (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (original_id) DO NOTHING`,
			rec.ID, rec.OriginalID, rec.EmployerID, rec.EmployeeID, rec.PayPeriodFrom, rec.PayPeriodTo,
			rec.Currency, rec.GrossPay, rec.IncomeTax, rec.EmployeeNI, rec.EmployerNI,
			rec.EmployeePension, rec.EmployerPension, rec.StudentLoan, rec.NetPay,
			rec.ClosedAt, rec.ClosedByUserID, rec.ClosureBatchID, rec.ClosureNotes)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	var inserted int64
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Get fetches a single archive row.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM payroll_history WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns filtered, paginated archive rows plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	idx := 1
	if filters.BatchID != nil {
		where = append(where, fmt.Sprintf("closure_batch_id = $%d", idx))
		args = append(args, *filters.BatchID)
		idx++
	}
	if filters.EmployerID != nil {
		where = append(where, fmt.Sprintf("employer_id = $%d", idx))
		args = append(args, *filters.EmployerID)
		idx++
	}
	if filters.PeriodEnd != nil {
		where = append(where, fmt.Sprintf("pay_period_to = $%d", idx))
		args = append(args, *filters.PeriodEnd)
		idx++
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_history`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM payroll_history%s ORDER BY closed_at DESC, id LIMIT $%d OFFSET $%d`,
		recordColumns, clause, idx, idx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListBatches returns closure batches, newest first.
func (r *Repository) ListBatches(ctx context.Context, limit, offset int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT closure_batch_id, COUNT(*), MAX(closed_at), MAX(closed_by_user_id), MAX(closure_notes)
FROM payroll_history GROUP BY closure_batch_id ORDER BY MAX(closed_at) DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ClosureBatchID, &b.RecordCount, &b.ClosedAt, &b.ClosedByUserID, &b.ClosureNotes); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

// ActiveOriginals reports original ids that are present in both ledgers,
// the signature of a crash between archive insert and active delete.
func (r *Repository) ActiveOriginals(ctx context.Context, employerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT h.original_id FROM payroll_history h
JOIN payroll_records a ON a.id = h.original_id WHERE h.employer_id = $1`, employerID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.OriginalID, &rec.EmployerID, &rec.EmployeeID, &rec.PayPeriodFrom,
		&rec.PayPeriodTo, &rec.Currency, &rec.GrossPay, &rec.IncomeTax, &rec.EmployeeNI, &rec.EmployerNI,
		&rec.EmployeePension, &rec.EmployerPension, &rec.StudentLoan, &rec.NetPay,
		&rec.ClosedAt, &rec.ClosedByUserID, &rec.ClosureBatchID, &rec.ClosureNotes)
	return rec, err
}
