package employers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for employers.
type Repository interface {
	List(ctx context.Context, page, perPage int) ([]Employer, int, error)
	Get(ctx context.Context, id uuid.UUID) (Employer, error)
	Create(ctx context.Context, in Input) (Employer, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (Employer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, page, perPage int) ([]Employer, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, reference, created_at, updated_at
		FROM employers
		ORDER BY name
		LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Employer
	for rows.Next() {
		var e Employer
		if err := rows.Scan(&e.ID, &e.Name, &e.Reference, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Employer, error) {
	var e Employer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, reference, created_at, updated_at
		FROM employers WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Reference, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employer{}, ErrNotFound
		}
		return Employer{}, err
	}
	return e, nil
}

func (r *PGRepository) Create(ctx context.Context, in Input) (Employer, error) {
	var e Employer
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employers (name, reference) VALUES ($1, $2)
		RETURNING id, name, reference, created_at, updated_at`,
		strings.TrimSpace(in.Name), strings.TrimSpace(in.Reference)).
		Scan(&e.ID, &e.Name, &e.Reference, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Employer{}, mapUniqueViolation(err)
	}
	return e, nil
}

func (r *PGRepository) Update(ctx context.Context, id uuid.UUID, in Input) (Employer, error) {
	var e Employer
	err := r.pool.QueryRow(ctx, `
		UPDATE employers SET name = $2, reference = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, reference, created_at, updated_at`,
		id, strings.TrimSpace(in.Name), strings.TrimSpace(in.Reference)).
		Scan(&e.ID, &e.Name, &e.Reference, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employer{}, ErrNotFound
		}
		return Employer{}, mapUniqueViolation(err)
	}
	return e, nil
}

func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrNameTaken
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
