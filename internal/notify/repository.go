package notify

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
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

// Insert appends a notification.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (type, title, message, target_module, read, created_at)
		VALUES ($1, $2, $3, $4, false, $5) RETURNING id`,
		n.Type, n.Title, n.Message, n.TargetModule, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

// List returns notifications for a module, newest first.
func (r *Repository) List(ctx context.Context, targetModule string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, type, title, message, target_module, read, created_at FROM notifications
		WHERE ($1 = '' OR target_module = $1) AND (NOT $2 OR read = false)
		ORDER BY created_at DESC LIMIT $3`, targetModule, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.TargetModule, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Get loads one notification.
func (r *Repository) Get(ctx context.Context, id int64) (Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `SELECT id, type, title, message, target_module, read, created_at FROM notifications WHERE id=$1`, id).
		Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.TargetModule, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

// MarkRead flips one notification to read. Returns the notification so the
// caller can adjust counters for its module.
func (r *Repository) MarkRead(ctx context.Context, id int64) (Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `UPDATE notifications SET read = true WHERE id=$1
		RETURNING id, type, title, message, target_module, read, created_at`, id).
		Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.TargetModule, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

// UnreadCount counts unread notifications for a module.
func (r *Repository) UnreadCount(ctx context.Context, targetModule string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE target_module=$1 AND read = false`, targetModule).Scan(&count)
	return count, err
}

// ListUndispatched returns notifications created after the watermark, used by
// the dispatch job to fan out fresh notices.
func (r *Repository) ListUndispatched(ctx context.Context, since time.Time, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, type, title, message, target_module, read, created_at FROM notifications
		WHERE created_at > $1 ORDER BY created_at LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.TargetModule, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
