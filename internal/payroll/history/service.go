package history

import (
	"context"

	"github.com/google/uuid"
)

// Reader defines the archive read operations the service needs.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	List(ctx context.Context, filters ListFilters) ([]Record, int, error)
	ListBatches(ctx context.Context, limit, offset int) ([]Batch, error)
}

// Service exposes read-only access to the archive. The API surface offers
// no mutation routes; append happens only through the closure engine.
type Service struct {
	repo Reader
}

// NewService constructs a Service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// Get returns a single archive row.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered archive rows with a total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	return s.repo.List(ctx, filters)
}

// ListBatches returns closure batches, newest first.
func (s *Service) ListBatches(ctx context.Context, limit, offset int) ([]Batch, error) {
	return s.repo.ListBatches(ctx, limit, offset)
}
