package catalog

import (
	"context"
	"fmt"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, p Product) (int64, error)
	GetByID(ctx context.Context, id int64) (Product, error)
	GetByCode(ctx context.Context, code string) (Product, error)
	List(ctx context.Context, category string, limit int) ([]Product, error)
	ListBelowMinimum(ctx context.Context) ([]LowStockProduct, error)
}

// Service exposes the catalog surface other modules consume.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the catalog service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new product.
type CreateInput struct {
	Code         string
	Name         string
	Description  string
	Category     string
	MinimumStock int64
	Unit         string
}

// Create registers a product.
func (s *Service) Create(ctx context.Context, input CreateInput) (Product, error) {
	if input.Code == "" || input.Name == "" || input.Category == "" {
		return Product{}, fmt.Errorf("%w: code, name and category required", ErrValidation)
	}
	if input.MinimumStock < 0 {
		return Product{}, fmt.Errorf("%w: minimum stock must be >= 0", ErrValidation)
	}
	if input.Unit == "" {
		input.Unit = "PIEZA"
	}
	p := Product{
		Code:         input.Code,
		Name:         input.Name,
		Description:  input.Description,
		Category:     input.Category,
		MinimumStock: input.MinimumStock,
		Unit:         input.Unit,
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	return p, nil
}

// Get returns one product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode returns one product by code.
func (s *Service) GetByCode(ctx context.Context, code string) (Product, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns products filtered by category.
func (s *Service) List(ctx context.Context, category string, limit int) ([]Product, error) {
	return s.repo.List(ctx, category, limit)
}

// ListBelowMinimum reports products under their stock threshold.
func (s *Service) ListBelowMinimum(ctx context.Context) ([]LowStockProduct, error) {
	return s.repo.ListBelowMinimum(ctx)
}
