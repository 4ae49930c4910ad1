package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/shared"
)

// Repository defines persistence operations for the active ledger.
type Repository interface {
	Insert(ctx context.Context, inputs []CreateInput) ([]Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	List(ctx context.Context, filters ListFilters) ([]Record, int, error)
	UpdateFields(ctx context.Context, id uuid.UUID, patch FieldPatch) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Auditor records ledger mutations for later review.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard deduplicates import submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service wraps active ledger business rules.
type Service struct {
	repo        Repository
	audit       Auditor
	idempotency IdempotencyGuard
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit Auditor, idempotency IdempotencyGuard, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idempotency, logger: logger}
}

const importModule = "payroll.import"

// Import validates and persists a batch of records from the import
// boundary. An optional idempotency key rejects duplicate submissions.
func (s *Service) Import(ctx context.Context, inputs []CreateInput, actorID int64, idemKey string) ([]Record, error) {
	if len(inputs) == 0 {
		return nil, errors.New("payroll: no records supplied")
	}
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, importModule); err != nil {
			return nil, err
		}
	}
	records, err := s.repo.Insert(ctx, inputs)
	if err != nil {
		if idemKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, idemKey); delErr != nil && s.logger != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return nil, err
	}
	s.recordAudit(ctx, actorID, "payroll.import", fmt.Sprintf("%d", len(records)), map[string]any{"count": len(records)})
	return records, nil
}

// Get returns a single active record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered active records with a total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	return s.repo.List(ctx, filters)
}

// Patch applies an allow-listed field update to one record.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, patch FieldPatch, actorID int64) (Record, error) {
	if patch.IsEmpty() {
		return Record{}, ErrEmptyPatch
	}
	if err := patch.Validate(); err != nil {
		return Record{}, err
	}
	rec, err := s.repo.UpdateFields(ctx, id, patch)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actorID, "payroll.patch", id.String(), nil)
	return rec, nil
}

// Delete removes one record ahead of closure, the correction path for
// bad imports.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actorID int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "payroll.delete", id.String(), nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payroll_record",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
