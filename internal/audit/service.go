package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	exportCap       = 5000
)

// Repository supplies audit trail rows to the service.
type Repository interface {
	List(ctx context.Context, filters Filters, limit, offset int) ([]Entry, error)
}

// Service coordinates audit trail reads.
type Service struct {
	repo Repository
}

// NewService returns a new audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the audit trail. One extra row is fetched to
// decide whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	entries, err := s.repo.List(ctx, filters, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return Result{
		Entries: entries,
		Paging:  PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}

// ExportCSV renders the filtered trail as CSV, capped at exportCap rows.
func (s *Service) ExportCSV(ctx context.Context, filters Filters) ([]byte, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	entries, err := s.repo.List(ctx, filters, exportCap, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"occurred_at", "actor_id", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		record := []string{
			e.OccurredAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(e.ActorID, 10),
			e.Action,
			e.Entity,
			e.EntityID,
			meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
