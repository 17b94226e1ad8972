package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for orders and hojas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements a fulfillment transaction is built of.
// All writes of one fulfillment go through a single instance so the commit
// is all-or-nothing.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, orderID int64) (CustomerOrder, error)
	ConsumeStock(ctx context.Context, productID, quantity int64) error
	MarkItemFulfilled(ctx context.Context, itemID int64) error
	SetOrderFulfilled(ctx context.Context, orderID int64, at time.Time) error
	InsertNotification(ctx context.Context, typ, title, message, targetModule string) error
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// NextFolioSeq returns the next sequence number for folios with the given
// prefix in the given year.
func (r *Repository) NextFolioSeq(ctx context.Context, prefix string, year int) (int64, error) {
	var count int64
	pattern := Folio(prefix, year, 0)[:len(prefix)+6] + "%"
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customer_orders WHERE folio LIKE $1`, pattern).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// CreateOrder inserts an order with its items in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, order CustomerOrder) (CustomerOrder, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO customer_orders (folio, pipeline, client_ref, status, guarantee, placed_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			order.Folio, order.Pipeline, order.ClientRef, order.Status, order.Guarantee, order.PlacedAt).Scan(&order.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateFolio
			}
			return err
		}
		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, fulfilled)
				VALUES ($1, $2, $3, false) RETURNING id`,
				order.ID, item.ProductID, item.Quantity).Scan(&item.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CustomerOrder{}, err
	}
	return order, nil
}

// GetOrder loads an order and its items.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (CustomerOrder, error) {
	return getOrder(ctx, r.pool, orderID, "")
}

// ListOrders returns orders without items, newest first.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]CustomerOrder, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, folio, pipeline, client_ref, status, guarantee, placed_at, fulfilled_at
		FROM customer_orders
		WHERE ($1 = '' OR pipeline = $1) AND ($2 = '' OR status = $2)
		ORDER BY placed_at DESC LIMIT $3`, string(filter.Pipeline), string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CustomerOrder
	for rows.Next() {
		var o CustomerOrder
		if err := rows.Scan(&o.ID, &o.Folio, &o.Pipeline, &o.ClientRef, &o.Status, &o.Guarantee, &o.PlacedAt, &o.FulfilledAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateHoja inserts a hoja viajera.
func (r *Repository) CreateHoja(ctx context.Context, hoja HojaViajera) (HojaViajera, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO hojas_viajeras (folio, client_ref, status, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		hoja.Folio, hoja.ClientRef, hoja.Status, hoja.CreatedAt).Scan(&hoja.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return HojaViajera{}, ErrDuplicateFolio
		}
		return HojaViajera{}, err
	}
	return hoja, nil
}

// NextHojaSeq returns the next hoja folio sequence for the year.
func (r *Repository) NextHojaSeq(ctx context.Context, year int) (int64, error) {
	var count int64
	pattern := Folio("HV", year, 0)[:8] + "%"
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM hojas_viajeras WHERE folio LIKE $1`, pattern).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// GetHoja loads one hoja viajera.
func (r *Repository) GetHoja(ctx context.Context, id int64) (HojaViajera, error) {
	var h HojaViajera
	err := r.pool.QueryRow(ctx, `SELECT id, folio, client_ref, status, created_at, printed_at, delivered_at, process_started_at, completed_at
		FROM hojas_viajeras WHERE id=$1`, id).
		Scan(&h.ID, &h.Folio, &h.ClientRef, &h.Status, &h.CreatedAt, &h.PrintedAt, &h.DeliveredAt, &h.ProcessStartedAt, &h.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return HojaViajera{}, ErrNotFound
		}
		return HojaViajera{}, err
	}
	return h, nil
}

// ListHojas returns hojas newest first.
func (r *Repository) ListHojas(ctx context.Context, status HojaStatus, limit int) ([]HojaViajera, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, folio, client_ref, status, created_at, printed_at, delivered_at, process_started_at, completed_at
		FROM hojas_viajeras WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HojaViajera
	for rows.Next() {
		var h HojaViajera
		if err := rows.Scan(&h.ID, &h.Folio, &h.ClientRef, &h.Status, &h.CreatedAt, &h.PrintedAt, &h.DeliveredAt, &h.ProcessStartedAt, &h.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpdateHojaStatus moves a hoja to status and stamps the matching timestamp.
// The WHERE clause enforces that the row still holds the expected source
// state, so a stale caller loses.
func (r *Repository) UpdateHojaStatus(ctx context.Context, id int64, from, to HojaStatus, at time.Time) error {
	column := map[HojaStatus]string{
		HojaImpresa:          "printed_at",
		HojaEntregadaAlmacen: "delivered_at",
		HojaEnProceso:        "process_started_at",
		HojaCompletada:       "completed_at",
	}[to]
	if column == "" {
		return ErrInvalidState
	}
	tag, err := r.pool.Exec(ctx, `UPDATE hojas_viajeras SET status=$1, `+column+`=$2 WHERE id=$3 AND status=$4`, to, at, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrder(ctx context.Context, q querier, orderID int64, lock string) (CustomerOrder, error) {
	var o CustomerOrder
	err := q.QueryRow(ctx, `SELECT id, folio, pipeline, client_ref, status, guarantee, placed_at, fulfilled_at
		FROM customer_orders WHERE id=$1`+lock, orderID).
		Scan(&o.ID, &o.Folio, &o.Pipeline, &o.ClientRef, &o.Status, &o.Guarantee, &o.PlacedAt, &o.FulfilledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerOrder{}, ErrNotFound
		}
		return CustomerOrder{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, quantity, fulfilled FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return CustomerOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Fulfilled); err != nil {
			return CustomerOrder{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, orderID int64) (CustomerOrder, error) {
	return getOrder(ctx, t.tx, orderID, " FOR UPDATE")
}

// ConsumeStock decrements quantity units of a product across its inventory
// rows, most stocked location first. Rows are locked before the decision so
// the availability check holds until commit; a shortfall surfaces as
// *inventory.InsufficientStockError and aborts the transaction.
func (t *txRepo) ConsumeStock(ctx context.Context, productID, quantity int64) error {
	rows, err := t.tx.Query(ctx, `SELECT id, quantity FROM inventory WHERE product_id=$1 ORDER BY quantity DESC, id FOR UPDATE`, productID)
	if err != nil {
		return err
	}
	type slot struct {
		id  int64
		qty int64
	}
	var slots []slot
	var available int64
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.id, &s.qty); err != nil {
			rows.Close()
			return err
		}
		slots = append(slots, s)
		available += s.qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if available < quantity {
		return &inventory.InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
	}
	remaining := quantity
	for _, s := range slots {
		if remaining == 0 {
			break
		}
		take := s.qty
		if take > remaining {
			take = remaining
		}
		_, err := t.tx.Exec(ctx, `UPDATE inventory SET quantity = quantity - $1, updated_at = NOW() WHERE id=$2 AND quantity >= $1`, take, s.id)
		if err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}

func (t *txRepo) MarkItemFulfilled(ctx context.Context, itemID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE order_items SET fulfilled = true WHERE id=$1`, itemID)
	return err
}

func (t *txRepo) SetOrderFulfilled(ctx context.Context, orderID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE customer_orders SET status=$1, fulfilled_at=$2 WHERE id=$3 AND status=$4`,
		OrderSurtido, at, orderID, OrderPendiente)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (t *txRepo) InsertNotification(ctx context.Context, typ, title, message, targetModule string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO notifications (type, title, message, target_module, read, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())`, typ, title, message, targetModule)
	return err
}
