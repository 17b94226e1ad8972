package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, productID int64, location string) (Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
	AvailableQuantity(ctx context.Context, productID int64) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Increment adds stock at a location, creating the record when absent.
// An empty lot leaves the existing lot tag untouched.
func (s *Service) Increment(ctx context.Context, input IncrementInput) (Record, error) {
	if input.ProductID == 0 || input.Location == "" {
		return Record{}, errors.New("inventory: product and location required")
	}
	if input.Quantity <= 0 {
		return Record{}, ErrInvalidQuantity
	}
	var result Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.Upsert(ctx, Record{
			ProductID: input.ProductID,
			Location:  input.Location,
			Quantity:  input.Quantity,
			Lot:       input.Lot,
		})
		if err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, input.ActorID, "INVENTORY_IN", input.ProductID, map[string]any{
		"location": input.Location,
		"qty":      input.Quantity,
		"lot":      input.Lot,
	})
	return result, nil
}

// Decrement removes stock at a location. The row lock taken by GetForUpdate
// makes the quantity check authoritative under concurrent callers; a refused
// decrement mutates nothing.
func (s *Service) Decrement(ctx context.Context, input DecrementInput) (int64, error) {
	if input.ProductID == 0 || input.Location == "" {
		return 0, errors.New("inventory: product and location required")
	}
	if input.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	var newQty int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, input.ProductID, input.Location)
		if errors.Is(err, ErrRecordNotFound) {
			return &InsufficientStockError{ProductID: input.ProductID, Requested: input.Quantity, Available: 0}
		}
		if err != nil {
			return err
		}
		if rec.Quantity < input.Quantity {
			return &InsufficientStockError{ProductID: input.ProductID, Requested: input.Quantity, Available: rec.Quantity}
		}
		newQty = rec.Quantity - input.Quantity
		return tx.SetQuantity(ctx, rec.ID, newQty)
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, input.ActorID, "INVENTORY_OUT", input.ProductID, map[string]any{
		"location": input.Location,
		"qty":      input.Quantity,
		"ref":      input.RefModule,
		"reason":   input.Reason,
	})
	return newQty, nil
}

// Get returns the ledger record for one (product, location) pair.
func (s *Service) Get(ctx context.Context, productID int64, location string) (Record, error) {
	if productID == 0 || location == "" {
		return Record{}, errors.New("inventory: product and location required")
	}
	return s.repo.Get(ctx, productID, location)
}

// List returns ledger records matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	return s.repo.List(ctx, filter)
}

// AvailableQuantity reports total on-hand stock for a product.
func (s *Service) AvailableQuantity(ctx context.Context, productID int64) (int64, error) {
	if productID == 0 {
		return 0, errors.New("inventory: product required")
	}
	return s.repo.AvailableQuantity(ctx, productID)
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
}
