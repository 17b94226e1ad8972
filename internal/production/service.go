package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/optica-erp/optica-erp/internal/orders"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	UpsertRecord(ctx context.Context, orderID int64, pipeline orders.PipelineType) (Record, error)
	GetRecord(ctx context.Context, id int64) (Record, error)
	ActiveControl(ctx context.Context, productionID int64) (CuttingControl, error)
	CreateControl(ctx context.Context, control CuttingControl) (CuttingControl, error)
	GetControl(ctx context.Context, id int64) (CuttingControl, error)
	ListControls(ctx context.Context, status CuttingStatus, limit int) ([]CuttingControl, error)
	MarkStarted(ctx context.Context, controlID int64, from []CuttingStatus, at time.Time) error
	MarkExited(ctx context.Context, controlID int64, at time.Time) error
	ListScrap(ctx context.Context, limit int) ([]ScrapRecord, error)
}

// OrdersPort exposes the order lookups the pipeline needs.
type OrdersPort interface {
	GetOrder(ctx context.Context, orderID int64) (orders.CustomerOrder, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the cutting and quality state machine.
type Service struct {
	repo   RepositoryPort
	orders OrdersPort
	audit  AuditPort
	scraps prometheus.Counter
	now    func() time.Time
}

// NewService builds Service. audit and counter may be nil.
func NewService(repo RepositoryPort, ordersPort OrdersPort, audit AuditPort, scraps prometheus.Counter) *Service {
	return &Service{
		repo:   repo,
		orders: ordersPort,
		audit:  audit,
		scraps: scraps,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AdmitInput describes an admission into the cutting stage.
type AdmitInput struct {
	OrderID     int64
	Pipeline    orders.PipelineType
	Operator    string
	ClientLabel string
	ActorID     string
}

// AdmitResult pairs the production record with its cutting control.
type AdmitResult struct {
	Record  Record
	Control CuttingControl
}

// AdmitToCutting admits a fulfilled order into the cutting stage. Admission
// is idempotent per (order, pipeline): a repeated call returns the existing
// record and its open control instead of duplicating either.
func (s *Service) AdmitToCutting(ctx context.Context, input AdmitInput) (AdmitResult, error) {
	if !input.Pipeline.Valid() {
		return AdmitResult{}, fmt.Errorf("%w: unknown pipeline %q", ErrValidation, input.Pipeline)
	}
	if input.Operator == "" {
		return AdmitResult{}, fmt.Errorf("%w: operator required", ErrValidation)
	}
	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return AdmitResult{}, ErrNotFound
		}
		return AdmitResult{}, err
	}
	if order.Status == orders.OrderPendiente {
		return AdmitResult{}, fmt.Errorf("%w: order %s not yet fulfilled", ErrInvalidState, order.Folio)
	}

	rec, err := s.repo.UpsertRecord(ctx, input.OrderID, input.Pipeline)
	if err != nil {
		return AdmitResult{}, err
	}
	control, err := s.repo.ActiveControl(ctx, rec.ID)
	if errors.Is(err, ErrNotFound) {
		control, err = s.repo.CreateControl(ctx, CuttingControl{
			ProductionID: rec.ID,
			Operator:     input.Operator,
			ClientLabel:  input.ClientLabel,
			Status:       CuttingEntrada,
			EnteredAt:    s.now(),
		})
	}
	if err != nil {
		return AdmitResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, "CUTTING_ADMITTED", rec.ID, map[string]any{
		"order_id": input.OrderID,
		"pipeline": input.Pipeline,
	})
	return AdmitResult{Record: rec, Control: control}, nil
}

// StartCutting moves a control into EN_PROCESO. Accepted from ENTRADA, or
// from RETALLADO as the explicit resubmission of a reworked piece.
func (s *Service) StartCutting(ctx context.Context, controlID int64, actorID string) (CuttingControl, error) {
	if err := s.repo.MarkStarted(ctx, controlID, []CuttingStatus{CuttingEntrada, CuttingRetallado}, s.now()); err != nil {
		return CuttingControl{}, err
	}
	s.recordAudit(ctx, actorID, "CUTTING_STARTED", controlID, nil)
	return s.repo.GetControl(ctx, controlID)
}

// FinishCutting moves a control from EN_PROCESO to SALIDA, ready for
// inspection.
func (s *Service) FinishCutting(ctx context.Context, controlID int64, actorID string) (CuttingControl, error) {
	if err := s.repo.MarkExited(ctx, controlID, s.now()); err != nil {
		return CuttingControl{}, err
	}
	s.recordAudit(ctx, actorID, "CUTTING_FINISHED", controlID, nil)
	return s.repo.GetControl(ctx, controlID)
}

// InspectionInput describes a quality verdict.
type InspectionInput struct {
	ControlID     int64
	Inspector     string
	Outcome       QualityOutcome
	RequiresBevel bool
	Notes         string
	ActorID       string
}

// SubmitQualityInspection routes a control out of SALIDA. All side effects
// of the verdict commit in one transaction:
//   - OK: control APROBADO; bevel flag when required, otherwise the record
//     completes and the order advances to TERMINADO.
//   - RETALLADO: control RETALLADO, rework counter incremented; the piece
//     waits for resubmission.
//   - MERMA: control MERMA; a scrap record for the order's first line item,
//     a clamped inventory decrement of one unit and a warehouse notification.
func (s *Service) SubmitQualityInspection(ctx context.Context, input InspectionInput) (QualityInspection, error) {
	if input.Inspector == "" {
		return QualityInspection{}, fmt.Errorf("%w: inspector required", ErrValidation)
	}
	if !input.Outcome.Valid() {
		return QualityInspection{}, fmt.Errorf("%w: unknown outcome %q", ErrValidation, input.Outcome)
	}

	inspection := QualityInspection{
		ControlID:     input.ControlID,
		Inspector:     input.Inspector,
		Outcome:       input.Outcome,
		RequiresBevel: input.RequiresBevel,
		Notes:         input.Notes,
		CreatedAt:     s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		control, err := tx.GetControlForUpdate(ctx, input.ControlID)
		if err != nil {
			return err
		}
		if control.Status != CuttingSalida {
			return fmt.Errorf("%w: inspection requires SALIDA, control is %s", ErrInvalidState, control.Status)
		}
		inspection.ID, err = tx.InsertInspection(ctx, inspection)
		if err != nil {
			return err
		}
		switch input.Outcome {
		case OutcomeOK:
			if err := tx.UpdateControlStatus(ctx, control.ID, CuttingSalida, CuttingAprobado); err != nil {
				return err
			}
			rec, err := tx.GetProduction(ctx, control.ProductionID)
			if err != nil {
				return err
			}
			if input.RequiresBevel {
				return tx.SetBevel(ctx, rec.ID)
			}
			if err := tx.SetCompleted(ctx, rec.ID); err != nil {
				return err
			}
			return tx.CompleteOrder(ctx, rec.OrderID)

		case OutcomeRetallado:
			if err := tx.UpdateControlStatus(ctx, control.ID, CuttingSalida, CuttingRetallado); err != nil {
				return err
			}
			return tx.IncrementRework(ctx, control.ID)

		case OutcomeMerma:
			if err := tx.UpdateControlStatus(ctx, control.ID, CuttingSalida, CuttingMerma); err != nil {
				return err
			}
			rec, err := tx.GetProduction(ctx, control.ProductionID)
			if err != nil {
				return err
			}
			productID, err := tx.FirstOrderItemProduct(ctx, rec.OrderID)
			if err != nil {
				return err
			}
			// The scrap motive is fixed; the inspector's observations stay
			// on the inspection row.
			if _, err := tx.InsertScrap(ctx, ScrapRecord{
				ProductID: productID,
				Operator:  control.Operator,
				Quantity:  1,
				Category:  ScrapCategoryTallado,
				Reason:    ScrapReasonQualityReject,
				CreatedAt: inspection.CreatedAt,
			}); err != nil {
				return err
			}
			if err := tx.DecrementInventoryClamped(ctx, productID, 1); err != nil {
				return err
			}
			return tx.InsertNotification(ctx, "SCRAP_RECORDED",
				"Merma registrada",
				fmt.Sprintf("Merma de 1 pieza del producto %d en tallado", productID),
				"ALMACEN")
		}
		return nil
	})
	if err != nil {
		return QualityInspection{}, err
	}

	if input.Outcome == OutcomeMerma && s.scraps != nil {
		s.scraps.Inc()
	}
	s.recordAudit(ctx, input.ActorID, "QUALITY_SUBMITTED", input.ControlID, map[string]any{
		"outcome":        input.Outcome,
		"requires_bevel": input.RequiresBevel,
	})
	return inspection, nil
}

// GetRecord loads one production record.
func (s *Service) GetRecord(ctx context.Context, id int64) (Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// GetControl loads one cutting control.
func (s *Service) GetControl(ctx context.Context, id int64) (CuttingControl, error) {
	return s.repo.GetControl(ctx, id)
}

// ListControls returns controls filtered by status.
func (s *Service) ListControls(ctx context.Context, status CuttingStatus, limit int) ([]CuttingControl, error) {
	return s.repo.ListControls(ctx, status, limit)
}

// ListScrap returns scrap records.
func (s *Service) ListScrap(ctx context.Context, limit int) ([]ScrapRecord, error) {
	return s.repo.ListScrap(ctx, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "production",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
