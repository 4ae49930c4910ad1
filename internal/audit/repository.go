package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the audit trail from audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns entries matching the filters, newest first. limit rows are
// fetched starting at offset; callers request one extra row to detect a
// following page.
func (r *PGRepository) List(ctx context.Context, filters Filters, limit, offset int) ([]Entry, error) {
	query, args := buildListQuery(filters)
	query += " ORDER BY occurred_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func buildListQuery(filters Filters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= ", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= ", filters.To)
	}
	if filters.ActorID != 0 {
		add("actor_id = ", filters.ActorID)
	}
	if entity := strings.TrimSpace(filters.Entity); entity != "" {
		add("entity = ", entity)
	}
	if action := strings.TrimSpace(filters.Action); action != "" {
		add("action = ", action)
	}

	query := `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query, args
}
