package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	records map[string]Record
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]Record)}
}

func key(productID int64, location string) string {
	return fmt.Sprintf("%d:%s", productID, location)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, productID int64, location string) (Record, error) {
	if rec, ok := r.records[key(productID, location)]; ok {
		return rec, nil
	}
	return Record{}, ErrRecordNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryRepo) AvailableQuantity(ctx context.Context, productID int64) (int64, error) {
	var total int64
	for _, rec := range r.records {
		if rec.ProductID == productID {
			total += rec.Quantity
		}
	}
	return total, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, productID int64, location string) (Record, error) {
	return tx.repo.Get(ctx, productID, location)
}

func (tx *memoryTx) Upsert(ctx context.Context, rec Record) (Record, error) {
	k := key(rec.ProductID, rec.Location)
	if existing, ok := tx.repo.records[k]; ok {
		existing.Quantity += rec.Quantity
		if rec.Lot != "" {
			existing.Lot = rec.Lot
		}
		tx.repo.records[k] = existing
		return existing, nil
	}
	tx.repo.nextID++
	rec.ID = tx.repo.nextID
	tx.repo.records[k] = rec
	return rec, nil
}

func (tx *memoryTx) SetQuantity(ctx context.Context, id int64, quantity int64) error {
	if quantity < 0 {
		return ErrInsufficientStock
	}
	for k, rec := range tx.repo.records {
		if rec.ID == id {
			rec.Quantity = quantity
			tx.repo.records[k] = rec
			return nil
		}
	}
	return ErrRecordNotFound
}

func TestIncrementAccumulates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	rec, err := svc.Increment(ctx, IncrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 10, Lot: "LOTE-2026-001"})
	require.NoError(t, err)
	require.EqualValues(t, 10, rec.Quantity)

	rec, err = svc.Increment(ctx, IncrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 5})
	require.NoError(t, err)
	require.EqualValues(t, 15, rec.Quantity)
	require.Equal(t, "LOTE-2026-001", rec.Lot)

	rec, err = svc.Increment(ctx, IncrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 1, Lot: "LOTE-2026-002"})
	require.NoError(t, err)
	require.Equal(t, "LOTE-2026-002", rec.Lot)
}

func TestDecrement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Increment(ctx, IncrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 5})
	require.NoError(t, err)

	newQty, err := svc.Decrement(ctx, DecrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 3})
	require.NoError(t, err)
	require.EqualValues(t, 2, newQty)
}

func TestDecrementInsufficient(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Increment(ctx, IncrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 2})
	require.NoError(t, err)

	_, err = svc.Decrement(ctx, DecrementInput{ProductID: 1, Location: "ALMACEN-PRINCIPAL", Quantity: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.EqualValues(t, 3, short.Shortage())
	require.EqualValues(t, 2, short.Available)

	// A refused decrement must not mutate the record.
	rec, err := svc.Get(ctx, 1, "ALMACEN-PRINCIPAL")
	require.NoError(t, err)
	require.EqualValues(t, 2, rec.Quantity)
}

func TestDecrementMissingRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	_, err := svc.Decrement(context.Background(), DecrementInput{ProductID: 9, Location: "ALMACEN-PRINCIPAL", Quantity: 1})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.EqualValues(t, 0, short.Available)
}

func TestInvalidQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	_, err := svc.Increment(context.Background(), IncrementInput{ProductID: 1, Location: "A", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Decrement(context.Background(), DecrementInput{ProductID: 1, Location: "A", Quantity: -4})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
