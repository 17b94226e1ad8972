package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists ledger records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, productID int64, location string) (Record, error)
	Upsert(ctx context.Context, rec Record) (Record, error)
	SetQuantity(ctx context.Context, id int64, quantity int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get returns the record for one (product, location) pair.
func (r *Repository) Get(ctx context.Context, productID int64, location string) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, location, quantity, COALESCE(lot,''), updated_at FROM inventory WHERE product_id=$1 AND location=$2`, productID, location).
		Scan(&rec.ID, &rec.ProductID, &rec.Location, &rec.Quantity, &rec.Lot, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns ledger records ordered by location and product.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, location, quantity, COALESCE(lot,''), updated_at FROM inventory
		WHERE ($1 = '' OR location = $1) AND ($2 = 0 OR product_id = $2)
		ORDER BY location, product_id LIMIT $3`, filter.Location, filter.ProductID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.Location, &rec.Quantity, &rec.Lot, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AvailableQuantity sums on-hand stock for a product across locations.
func (r *Repository) AvailableQuantity(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM inventory WHERE product_id=$1`, productID).Scan(&total)
	return total, err
}

func (r *txRepo) GetForUpdate(ctx context.Context, productID int64, location string) (Record, error) {
	var rec Record
	err := r.tx.QueryRow(ctx, `SELECT id, product_id, location, quantity, COALESCE(lot,''), updated_at FROM inventory WHERE product_id=$1 AND location=$2 FOR UPDATE`, productID, location).
		Scan(&rec.ID, &rec.ProductID, &rec.Location, &rec.Quantity, &rec.Lot, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *txRepo) Upsert(ctx context.Context, rec Record) (Record, error) {
	var lot any
	if rec.Lot != "" {
		lot = rec.Lot
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory (product_id, location, quantity, lot, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, location)
		DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity,
			lot = COALESCE(EXCLUDED.lot, inventory.lot),
			updated_at = EXCLUDED.updated_at
		RETURNING id, quantity, COALESCE(lot,'')`, rec.ProductID, rec.Location, rec.Quantity, lot, time.Now().UTC()).
		Scan(&rec.ID, &rec.Quantity, &rec.Lot)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *txRepo) SetQuantity(ctx context.Context, id int64, quantity int64) error {
	// The WHERE guard keeps the invariant even if a concurrent writer slipped
	// past the FOR UPDATE read; zero rows affected means the guard refused.
	tag, err := r.tx.Exec(ctx, `UPDATE inventory SET quantity=$2, updated_at=NOW() WHERE id=$1 AND $2 >= 0`, id, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}
