package shortage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, req Request) error
	List(ctx context.Context, filter ListFilter) ([]Request, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service issues and lists shortage requests.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	counter prometheus.Counter
}

// NewService builds Service. counter may be nil.
func NewService(repo RepositoryPort, audit AuditPort, counter prometheus.Counter) *Service {
	return &Service{repo: repo, audit: audit, counter: counter}
}

// RaiseInput describes a shortfall to record.
type RaiseInput struct {
	ProductID int64
	Quantity  int64
	Reason    string
	Urgent    bool
	ActorID   string
}

// Raise records a shortage request. It never mutates inventory; the caller
// has already aborted or skipped the consuming decrement.
func (s *Service) Raise(ctx context.Context, input RaiseInput) (Request, error) {
	if input.ProductID == 0 {
		return Request{}, fmt.Errorf("%w: product required", ErrValidation)
	}
	if input.Quantity <= 0 {
		return Request{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	req := Request{
		ID:        uuid.NewString(),
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Reason:    input.Reason,
		Urgent:    input.Urgent,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, req); err != nil {
		return Request{}, err
	}
	if s.counter != nil {
		s.counter.Inc()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "SHORTAGE_RAISED",
			Entity:   "shortage_request",
			EntityID: req.ID,
			Meta: map[string]any{
				"product_id": req.ProductID,
				"qty":        req.Quantity,
				"urgent":     req.Urgent,
			},
		})
	}
	return req, nil
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	return s.repo.List(ctx, filter)
}
