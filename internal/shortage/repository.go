package shortage

import (
	"context"

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

// Insert persists the request.
func (r *Repository) Insert(ctx context.Context, req Request) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO shortage_requests (id, product_id, quantity, reason, urgent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.ProductID, req.Quantity, req.Reason, req.Urgent, req.CreatedAt)
	return err
}

// List returns requests newest first, optionally filtered.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var urgent any
	if filter.Urgent != nil {
		urgent = *filter.Urgent
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, quantity, reason, urgent, created_at FROM shortage_requests
		WHERE ($1 = 0 OR product_id = $1)
		  AND ($2::boolean IS NULL OR urgent = $2)
		ORDER BY created_at DESC LIMIT $3`, filter.ProductID, urgent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.ProductID, &req.Quantity, &req.Reason, &req.Urgent, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
