package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, employer_id, employee_id, pay_period_from, pay_period_to, currency,
gross_pay, income_tax, employee_ni, employer_ni, employee_pension, employer_pension,
student_loan, net_pay, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence for the active ledger.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var sortColumns = map[string]string{
	"pay_period_to": "pay_period_to",
	"created_at":    "created_at",
	"gross_pay":     "gross_pay",
	"net_pay":       "net_pay",
}

// Insert persists a batch of imported records and returns them with
// assigned identities.
func (r *PGRepository) Insert(ctx context.Context, inputs []CreateInput) ([]Record, error) {
	now := time.Now().UTC()
	records := make([]Record, 0, len(inputs))
	batch := &pgx.Batch{}
	for _, in := range inputs {
		rec := Record{
			ID:              uuid.New(),
			EmployerID:      in.EmployerID,
			EmployeeID:      in.EmployeeID,
			PayPeriodFrom:   in.PayPeriodFrom,
			PayPeriodTo:     in.PayPeriodTo,
			Currency:        in.Currency,
			GrossPay:        in.GrossPay,
			IncomeTax:       in.IncomeTax,
			EmployeeNI:      in.EmployeeNI,
			EmployerNI:      in.EmployerNI,
			EmployeePension: in.EmployeePension,
			EmployerPension: in.EmployerPension,
			StudentLoan:     in.StudentLoan,
			NetPay:          in.NetPay,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if rec.Currency == "" {
			rec.Currency = "GBP"
		}
		batch.Queue(`INSERT INTO payroll_records (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			rec.ID, rec.EmployerID, rec.EmployeeID, rec.PayPeriodFrom, rec.PayPeriodTo, rec.Currency,
			rec.GrossPay, rec.IncomeTax, rec.EmployeeNI, rec.EmployerNI, rec.EmployeePension,
			rec.EmployerPension, rec.StudentLoan, rec.NetPay, rec.CreatedAt, rec.UpdatedAt)
		records = append(records, rec)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range inputs {
		if _, err := results.Exec(); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Get fetches a single active record.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM payroll_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns filtered, paginated active records plus the total count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	idx := 1
	if filters.EmployerID != nil {
		where = append(where, fmt.Sprintf("employer_id = $%d", idx))
		args = append(args, *filters.EmployerID)
		idx++
	}
	if filters.EmployeeID != nil {
		where = append(where, fmt.Sprintf("employee_id = $%d", idx))
		args = append(args, *filters.EmployeeID)
		idx++
	}
	if filters.PeriodToFrom != nil {
		where = append(where, fmt.Sprintf("pay_period_to >= $%d", idx))
		args = append(args, *filters.PeriodToFrom)
		idx++
	}
	if filters.PeriodToUpTo != nil {
		where = append(where, fmt.Sprintf("pay_period_to <= $%d", idx))
		args = append(args, *filters.PeriodToUpTo)
		idx++
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_records`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy, ok := sortColumns[filters.SortBy]
	if !ok {
		sortBy = "pay_period_to"
	}
	dir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		dir = "ASC"
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
	query := fmt.Sprintf(`SELECT %s FROM payroll_records%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		recordColumns, clause, sortBy, dir, idx, idx+1)

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

// UpdateFields applies a typed field patch and returns the updated record.
func (r *PGRepository) UpdateFields(ctx context.Context, id uuid.UUID, patch FieldPatch) (Record, error) {
	set := make([]string, 0, 12)
	args := make([]any, 0, 13)
	idx := 1
	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if patch.PayPeriodFrom != nil {
		add("pay_period_from", *patch.PayPeriodFrom)
	}
	if patch.PayPeriodTo != nil {
		add("pay_period_to", *patch.PayPeriodTo)
	}
	if patch.Currency != nil {
		add("currency", *patch.Currency)
	}
	if patch.GrossPay != nil {
		add("gross_pay", *patch.GrossPay)
	}
	if patch.IncomeTax != nil {
		add("income_tax", *patch.IncomeTax)
	}
	if patch.EmployeeNI != nil {
		add("employee_ni", *patch.EmployeeNI)
	}
	if patch.EmployerNI != nil {
		add("employer_ni", *patch.EmployerNI)
	}
	if patch.EmployeePension != nil {
		add("employee_pension", *patch.EmployeePension)
	}
	if patch.EmployerPension != nil {
		add("employer_pension", *patch.EmployerPension)
	}
	if patch.StudentLoan != nil {
		add("student_loan", *patch.StudentLoan)
	}
	if patch.NetPay != nil {
		add("net_pay", *patch.NetPay)
	}
	if len(set) == 0 {
		return Record{}, ErrEmptyPatch
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE payroll_records SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), idx, recordColumns)
	row := r.pool.QueryRow(ctx, query, args...)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Delete removes one active record.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payroll_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListByPeriodEnd returns every active record whose pay_period_to matches
// the supplied date. Used by the closure engine.
func (r *PGRepository) ListByPeriodEnd(ctx context.Context, periodEnd Date) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM payroll_records WHERE pay_period_to = $1 ORDER BY id`, periodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByIDs removes the given records and reports how many rows went away.
func (r *PGRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM payroll_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.EmployerID, &rec.EmployeeID, &rec.PayPeriodFrom, &rec.PayPeriodTo,
		&rec.Currency, &rec.GrossPay, &rec.IncomeTax, &rec.EmployeeNI, &rec.EmployerNI,
		&rec.EmployeePension, &rec.EmployerPension, &rec.StudentLoan, &rec.NetPay,
		&rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}
