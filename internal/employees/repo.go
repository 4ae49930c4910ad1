package employees

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for employees.
type Repository interface {
	List(ctx context.Context, employerID *uuid.UUID, page, perPage int) ([]Employee, int, error)
	Get(ctx context.Context, id uuid.UUID) (Employee, error)
	Create(ctx context.Context, in Input) (Employee, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (Employee, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const employeeColumns = `id, employer_id, first_name, last_name, email, ni_number, started_on, created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, employerID *uuid.UUID, page, perPage int) ([]Employee, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}

	where := ""
	countArgs := []any{}
	if employerID != nil {
		where = " WHERE employer_id = $1"
		countArgs = append(countArgs, *employerID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees"+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append([]any{}, countArgs...)
	limitPos := len(args) + 1
	args = append(args, perPage, (page-1)*perPage)
	query := "SELECT " + employeeColumns + " FROM employees" + where +
		" ORDER BY last_name, first_name" +
		" LIMIT $" + strconv.Itoa(limitPos) + " OFFSET $" + strconv.Itoa(limitPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, emp)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Employee, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", id)
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	return emp, nil
}

func (r *PGRepository) Create(ctx context.Context, in Input) (Employee, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO employees (employer_id, first_name, last_name, email, ni_number, started_on)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+employeeColumns,
		in.EmployerID, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName),
		strings.TrimSpace(in.Email), strings.TrimSpace(in.NINumber), in.StartedOn)
	return scanEmployee(row)
}

func (r *PGRepository) Update(ctx context.Context, id uuid.UUID, in Input) (Employee, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE employees
		SET first_name = $2, last_name = $3, email = $4, ni_number = $5, started_on = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+employeeColumns,
		id, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName),
		strings.TrimSpace(in.Email), strings.TrimSpace(in.NINumber), in.StartedOn)
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	return emp, nil
}

func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(&emp.ID, &emp.EmployerID, &emp.FirstName, &emp.LastName,
		&emp.Email, &emp.NINumber, &emp.StartedOn, &emp.CreatedAt, &emp.UpdatedAt)
	return emp, err
}

var _ Repository = (*PGRepository)(nil)
