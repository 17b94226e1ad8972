package production

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/orders"
	"github.com/optica-erp/optica-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the pipeline.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements a quality-routing transaction is built
// of. Every side effect of one inspection goes through a single instance.
type TxRepository interface {
	GetControlForUpdate(ctx context.Context, controlID int64) (CuttingControl, error)
	GetProduction(ctx context.Context, productionID int64) (Record, error)
	InsertInspection(ctx context.Context, inspection QualityInspection) (int64, error)
	UpdateControlStatus(ctx context.Context, controlID int64, from, to CuttingStatus) error
	IncrementRework(ctx context.Context, controlID int64) error
	SetBevel(ctx context.Context, productionID int64) error
	SetCompleted(ctx context.Context, productionID int64) error
	CompleteOrder(ctx context.Context, orderID int64) error
	FirstOrderItemProduct(ctx context.Context, orderID int64) (int64, error)
	InsertScrap(ctx context.Context, scrap ScrapRecord) (int64, error)
	DecrementInventoryClamped(ctx context.Context, productID, quantity int64) error
	InsertNotification(ctx context.Context, typ, title, message, targetModule string) error
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// UpsertRecord admits an order into a pipeline. The (order, pipeline) pair is
// unique; re-admission touches the existing row instead of duplicating it.
func (r *Repository) UpsertRecord(ctx context.Context, orderID int64, pipeline orders.PipelineType) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `INSERT INTO production_records (order_id, pipeline, en_tallado, en_bisel, completado, created_at, updated_at)
		VALUES ($1, $2, true, false, false, NOW(), NOW())
		ON CONFLICT (order_id, pipeline) DO UPDATE SET en_tallado = true, updated_at = NOW()
		RETURNING id, order_id, pipeline, en_tallado, en_bisel, completado, created_at, updated_at`,
		orderID, pipeline).
		Scan(&rec.ID, &rec.OrderID, &rec.Pipeline, &rec.EnTallado, &rec.EnBisel, &rec.Completado, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// GetRecord loads one production record.
func (r *Repository) GetRecord(ctx context.Context, id int64) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `SELECT id, order_id, pipeline, en_tallado, en_bisel, completado, created_at, updated_at
		FROM production_records WHERE id=$1`, id).
		Scan(&rec.ID, &rec.OrderID, &rec.Pipeline, &rec.EnTallado, &rec.EnBisel, &rec.Completado, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ActiveControl returns the production record's control that has not reached
// a terminal state, if any.
func (r *Repository) ActiveControl(ctx context.Context, productionID int64) (CuttingControl, error) {
	return scanControl(r.pool.QueryRow(ctx, `SELECT id, production_id, operator, client_label, status, rework_attempts, entered_at, started_at, exited_at
		FROM cutting_controls WHERE production_id=$1 AND status NOT IN ($2, $3)
		ORDER BY entered_at DESC LIMIT 1`, productionID, CuttingAprobado, CuttingMerma))
}

// CreateControl inserts a control in ENTRADA.
func (r *Repository) CreateControl(ctx context.Context, control CuttingControl) (CuttingControl, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO cutting_controls (production_id, operator, client_label, status, rework_attempts, entered_at)
		VALUES ($1, $2, $3, $4, 0, $5) RETURNING id`,
		control.ProductionID, control.Operator, control.ClientLabel, control.Status, control.EnteredAt).Scan(&control.ID)
	if err != nil {
		return CuttingControl{}, err
	}
	return control, nil
}

// GetControl loads one control.
func (r *Repository) GetControl(ctx context.Context, id int64) (CuttingControl, error) {
	return scanControl(r.pool.QueryRow(ctx, `SELECT id, production_id, operator, client_label, status, rework_attempts, entered_at, started_at, exited_at
		FROM cutting_controls WHERE id=$1`, id))
}

// ListControls returns controls for a status, newest first.
func (r *Repository) ListControls(ctx context.Context, status CuttingStatus, limit int) ([]CuttingControl, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, production_id, operator, client_label, status, rework_attempts, entered_at, started_at, exited_at
		FROM cutting_controls WHERE ($1 = '' OR status = $1) ORDER BY entered_at DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CuttingControl
	for rows.Next() {
		var c CuttingControl
		if err := rows.Scan(&c.ID, &c.ProductionID, &c.Operator, &c.ClientLabel, &c.Status, &c.ReworkAttempts, &c.EnteredAt, &c.StartedAt, &c.ExitedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkStarted moves a control into EN_PROCESO from one of the accepted
// source states, stamping the start time.
func (r *Repository) MarkStarted(ctx context.Context, controlID int64, from []CuttingStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cutting_controls SET status=$1, started_at=$2 WHERE id=$3 AND status = ANY($4)`,
		CuttingEnProceso, at, controlID, statusStrings(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkExited moves a control from EN_PROCESO to SALIDA, stamping the exit
// time.
func (r *Repository) MarkExited(ctx context.Context, controlID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cutting_controls SET status=$1, exited_at=$2 WHERE id=$3 AND status=$4`,
		CuttingSalida, at, controlID, CuttingEnProceso)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ListScrap returns scrap records newest first.
func (r *Repository) ListScrap(ctx context.Context, limit int) ([]ScrapRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, operator, quantity, category, reason, created_at
		FROM scrap_records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScrapRecord
	for rows.Next() {
		var s ScrapRecord
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Operator, &s.Quantity, &s.Category, &s.Reason, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func statusStrings(statuses []CuttingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanControl(row pgx.Row) (CuttingControl, error) {
	var c CuttingControl
	err := row.Scan(&c.ID, &c.ProductionID, &c.Operator, &c.ClientLabel, &c.Status, &c.ReworkAttempts, &c.EnteredAt, &c.StartedAt, &c.ExitedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CuttingControl{}, ErrNotFound
		}
		return CuttingControl{}, err
	}
	return c, nil
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetControlForUpdate(ctx context.Context, controlID int64) (CuttingControl, error) {
	return scanControl(t.tx.QueryRow(ctx, `SELECT id, production_id, operator, client_label, status, rework_attempts, entered_at, started_at, exited_at
		FROM cutting_controls WHERE id=$1 FOR UPDATE`, controlID))
}

func (t *txRepo) GetProduction(ctx context.Context, productionID int64) (Record, error) {
	var rec Record
	err := t.tx.QueryRow(ctx, `SELECT id, order_id, pipeline, en_tallado, en_bisel, completado, created_at, updated_at
		FROM production_records WHERE id=$1 FOR UPDATE`, productionID).
		Scan(&rec.ID, &rec.OrderID, &rec.Pipeline, &rec.EnTallado, &rec.EnBisel, &rec.Completado, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (t *txRepo) InsertInspection(ctx context.Context, inspection QualityInspection) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO quality_inspections (control_id, inspector, outcome, requires_bevel, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		inspection.ControlID, inspection.Inspector, inspection.Outcome, inspection.RequiresBevel, inspection.Notes, inspection.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateControlStatus(ctx context.Context, controlID int64, from, to CuttingStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE cutting_controls SET status=$1 WHERE id=$2 AND status=$3`, to, controlID, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (t *txRepo) IncrementRework(ctx context.Context, controlID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE cutting_controls SET rework_attempts = rework_attempts + 1 WHERE id=$1`, controlID)
	return err
}

func (t *txRepo) SetBevel(ctx context.Context, productionID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE production_records SET en_bisel = true, updated_at = NOW() WHERE id=$1`, productionID)
	return err
}

func (t *txRepo) SetCompleted(ctx context.Context, productionID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE production_records SET completado = true, en_tallado = false, updated_at = NOW() WHERE id=$1`, productionID)
	return err
}

func (t *txRepo) CompleteOrder(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE customer_orders SET status=$1 WHERE id=$2`, orders.OrderTerminado, orderID)
	return err
}

func (t *txRepo) FirstOrderItemProduct(ctx context.Context, orderID int64) (int64, error) {
	var productID int64
	err := t.tx.QueryRow(ctx, `SELECT product_id FROM order_items WHERE order_id=$1 ORDER BY id LIMIT 1`, orderID).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return productID, nil
}

func (t *txRepo) InsertScrap(ctx context.Context, scrap ScrapRecord) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO scrap_records (product_id, operator, quantity, category, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		scrap.ProductID, scrap.Operator, scrap.Quantity, scrap.Category, scrap.Reason, scrap.CreatedAt).Scan(&id)
	return id, err
}

// DecrementInventoryClamped takes quantity off the most stocked location,
// clamped at zero. The scrapped unit already left stock physically; the
// ledger records the loss without going negative.
func (t *txRepo) DecrementInventoryClamped(ctx context.Context, productID, quantity int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory SET quantity = GREATEST(quantity - $1, 0), updated_at = NOW()
		WHERE id = (SELECT id FROM inventory WHERE product_id=$2 ORDER BY quantity DESC, id LIMIT 1 FOR UPDATE)`,
		quantity, productID)
	return err
}

func (t *txRepo) InsertNotification(ctx context.Context, typ, title, message, targetModule string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO notifications (type, title, message, target_module, read, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())`, typ, title, message, targetModule)
	return err
}
