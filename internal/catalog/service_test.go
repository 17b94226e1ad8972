package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products map[string]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[string]Product)}
}

func (r *memoryRepo) Create(ctx context.Context, p Product) (int64, error) {
	if _, ok := r.products[p.Code]; ok {
		return 0, ErrDuplicateCode
	}
	r.nextID++
	p.ID = r.nextID
	r.products[p.Code] = p
	return p.ID, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (Product, error) {
	if p, ok := r.products[code]; ok {
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, category string, limit int) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBelowMinimum(ctx context.Context) ([]LowStockProduct, error) {
	return nil, nil
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Code: "LEN-CR39-200", Name: "Lente CR-39 -2.00", Category: "LENTES", MinimumStock: 50})
	require.NoError(t, err)
	require.NotZero(t, p.ID)
	require.Equal(t, "PIEZA", p.Unit)

	_, err = svc.Create(ctx, CreateInput{Name: "sin codigo", Category: "LENTES"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Code: "X", Name: "n", Category: "LENTES", MinimumStock: -1})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Code: "ARM-MET-001", Name: "Armazón metálico", Category: "ARMAZONES"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Code: "ARM-MET-001", Name: "Otro armazón", Category: "ARMAZONES"})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestUniqueViolationMapping(t *testing.T) {
	// The pool surfaces constraint errors as pgx/v5 *pgconn.PgError; the
	// mapping must recognize it even when wrapped.
	wrapped := fmt.Errorf("insert product: %w", &pgconn.PgError{Code: "23505", ConstraintName: "products_code_key"})
	require.True(t, isUniqueViolation(wrapped))

	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("connection reset")))
	require.False(t, isUniqueViolation(nil))
}
