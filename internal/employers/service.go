package employers

import (
	"context"

	"github.com/google/uuid"
)

// Service wraps employer business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, page, perPage int) ([]Employer, int, error) {
	return s.repo.List(ctx, page, perPage)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Employer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Employer, error) {
	if err := in.Validate(); err != nil {
		return Employer{}, err
	}
	return s.repo.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Employer, error) {
	if err := in.Validate(); err != nil {
		return Employer{}, err
	}
	return s.repo.Update(ctx, id, in)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
