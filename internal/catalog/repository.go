package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a product and returns its id.
func (r *Repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (code, name, description, category, minimum_stock, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.Code, p.Name, p.Description, p.Category, p.MinimumStock, p.Unit, time.Now().UTC()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByID returns one product.
func (r *Repository) GetByID(ctx context.Context, id int64) (Product, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(description,''), category, minimum_stock, unit, created_at FROM products WHERE id=$1`, id))
}

// GetByCode returns one product by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Product, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(description,''), category, minimum_stock, unit, created_at FROM products WHERE code=$1`, code))
}

// List returns products, optionally filtered by category.
func (r *Repository) List(ctx context.Context, category string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, COALESCE(description,''), category, minimum_stock, unit, created_at FROM products
		WHERE ($1 = '' OR category = $1) ORDER BY name LIMIT $2`, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.MinimumStock, &p.Unit, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListBelowMinimum returns products whose total on-hand stock across all
// locations is under their minimum threshold. Used by the low-stock scan.
func (r *Repository) ListBelowMinimum(ctx context.Context) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.code, p.name, p.minimum_stock, COALESCE(SUM(i.quantity), 0) AS on_hand
		FROM products p
		LEFT JOIN inventory i ON i.product_id = p.id
		GROUP BY p.id, p.code, p.name, p.minimum_stock
		HAVING COALESCE(SUM(i.quantity), 0) < p.minimum_stock
		ORDER BY p.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockProduct
	for rows.Next() {
		var item LowStockProduct
		if err := rows.Scan(&item.ProductID, &item.Code, &item.Name, &item.MinimumStock, &item.OnHand); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.MinimumStock, &p.Unit, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}
