package employees

import (
	"context"

	"github.com/google/uuid"
)

// Service wraps employee business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, employerID *uuid.UUID, page, perPage int) ([]Employee, int, error) {
	return s.repo.List(ctx, employerID, page, perPage)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Employee, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Employee, error) {
	if err := in.Validate(); err != nil {
		return Employee{}, err
	}
	return s.repo.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Employee, error) {
	if err := in.Validate(); err != nil {
		return Employee{}, err
	}
	return s.repo.Update(ctx, id, in)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
