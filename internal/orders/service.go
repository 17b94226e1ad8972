package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/shared"
	"github.com/optica-erp/optica-erp/internal/shortage"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	NextFolioSeq(ctx context.Context, prefix string, year int) (int64, error)
	CreateOrder(ctx context.Context, order CustomerOrder) (CustomerOrder, error)
	GetOrder(ctx context.Context, orderID int64) (CustomerOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]CustomerOrder, error)
	CreateHoja(ctx context.Context, hoja HojaViajera) (HojaViajera, error)
	NextHojaSeq(ctx context.Context, year int) (int64, error)
	GetHoja(ctx context.Context, id int64) (HojaViajera, error)
	ListHojas(ctx context.Context, status HojaStatus, limit int) ([]HojaViajera, error)
	UpdateHojaStatus(ctx context.Context, id int64, from, to HojaStatus, at time.Time) error
}

// InventoryPort exposes the read side of the ledger for pre-flight checks.
type InventoryPort interface {
	AvailableQuantity(ctx context.Context, productID int64) (int64, error)
}

// ShortagePort raises shortage requests.
type ShortagePort interface {
	Raise(ctx context.Context, input shortage.RaiseInput) (shortage.Request, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double fulfillment.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates order lifecycle and fulfillment.
type Service struct {
	repo        RepositoryPort
	stock       InventoryPort
	shortages   ShortagePort
	audit       AuditPort
	idempotency IdempotencyPort
	fulfilled   prometheus.Counter
	now         func() time.Time
}

// NewService builds Service. audit, idempotency and counter may be nil.
func NewService(repo RepositoryPort, stock InventoryPort, shortages ShortagePort, audit AuditPort, idempotency IdempotencyPort, fulfilled prometheus.Counter) *Service {
	return &Service{
		repo:        repo,
		stock:       stock,
		shortages:   shortages,
		audit:       audit,
		idempotency: idempotency,
		fulfilled:   fulfilled,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput describes a new customer order.
type CreateOrderInput struct {
	Pipeline  PipelineType
	ClientRef string
	Guarantee bool
	Items     []OrderItemInput
	ActorID   string
}

// OrderItemInput is one requested line.
type OrderItemInput struct {
	ProductID int64
	Quantity  int64
}

// CreateOrder registers a PENDIENTE order with a generated folio.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (CustomerOrder, error) {
	if !input.Pipeline.Valid() {
		return CustomerOrder{}, fmt.Errorf("%w: unknown pipeline %q", ErrValidation, input.Pipeline)
	}
	if len(input.Items) == 0 {
		return CustomerOrder{}, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return CustomerOrder{}, fmt.Errorf("%w: items need product and positive quantity", ErrValidation)
		}
	}
	now := s.now()
	order := CustomerOrder{
		Pipeline:  input.Pipeline,
		ClientRef: input.ClientRef,
		Status:    OrderPendiente,
		Guarantee: input.Guarantee,
		PlacedAt:  now,
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	prefix := input.Pipeline.FolioPrefix()
	for attempt := 0; attempt < 3; attempt++ {
		seq, err := s.repo.NextFolioSeq(ctx, prefix, now.Year())
		if err != nil {
			return CustomerOrder{}, err
		}
		order.Folio = Folio(prefix, now.Year(), seq)
		created, err := s.repo.CreateOrder(ctx, order)
		if errors.Is(err, ErrDuplicateFolio) {
			continue
		}
		if err != nil {
			return CustomerOrder{}, err
		}
		s.recordAudit(ctx, input.ActorID, "ORDER_CREATED", created.Folio, map[string]any{
			"pipeline": created.Pipeline,
			"items":    len(created.Items),
		})
		return created, nil
	}
	return CustomerOrder{}, ErrDuplicateFolio
}

// GetOrder loads one order with items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (CustomerOrder, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListOrders returns orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]CustomerOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// Fulfill moves a PENDIENTE order to SURTIDO, consuming inventory for every
// line. Items are all-or-nothing: the first short line aborts the attempt
// with nothing consumed, raises an urgent shortage request for the shortfall
// and reports the short product to the caller.
func (s *Service) Fulfill(ctx context.Context, orderID int64, actorID string) (CustomerOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return CustomerOrder{}, err
	}
	if order.Status != OrderPendiente {
		if order.Status == OrderSurtido {
			return CustomerOrder{}, ErrAlreadyFulfilled
		}
		return CustomerOrder{}, fmt.Errorf("%w: cannot fulfill order in state %s", ErrInvalidState, order.Status)
	}

	// Pre-flight, no mutation. The transaction below re-checks under row
	// locks, so this only exists to fail fast and size the shortfall.
	for _, item := range order.Items {
		available, err := s.stock.AvailableQuantity(ctx, item.ProductID)
		if err != nil {
			return CustomerOrder{}, err
		}
		if available < item.Quantity {
			short := &inventory.InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity, Available: available}
			s.raiseShortage(ctx, order.Folio, short, actorID)
			return CustomerOrder{}, short
		}
	}

	idemKey := "FULFILL:" + order.Folio
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "orders"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return CustomerOrder{}, ErrAlreadyFulfilled
			}
			return CustomerOrder{}, err
		}
	}

	fulfilledAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if locked.Status != OrderPendiente {
			return ErrAlreadyFulfilled
		}
		for _, item := range locked.Items {
			if err := tx.ConsumeStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			if err := tx.MarkItemFulfilled(ctx, item.ID); err != nil {
				return err
			}
		}
		if err := tx.SetOrderFulfilled(ctx, orderID, fulfilledAt); err != nil {
			return err
		}
		return tx.InsertNotification(ctx, "ORDER_READY",
			"Pedido surtido",
			fmt.Sprintf("El pedido %s fue surtido y está listo para producción", locked.Folio),
			"PRODUCCION")
	})
	if err != nil {
		if s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		var short *inventory.InsufficientStockError
		if errors.As(err, &short) {
			// Lost a race after pre-flight passed; nothing committed.
			s.raiseShortage(ctx, order.Folio, short, actorID)
		}
		return CustomerOrder{}, err
	}

	if s.fulfilled != nil {
		s.fulfilled.Inc()
	}
	s.recordAudit(ctx, actorID, "ORDER_FULFILLED", order.Folio, map[string]any{"items": len(order.Items)})
	return s.repo.GetOrder(ctx, orderID)
}

// CreateHojaViajera registers a hoja with a generated HV folio.
func (s *Service) CreateHojaViajera(ctx context.Context, clientRef, actorID string) (HojaViajera, error) {
	now := s.now()
	hoja := HojaViajera{ClientRef: clientRef, Status: HojaCreada, CreatedAt: now}
	for attempt := 0; attempt < 3; attempt++ {
		seq, err := s.repo.NextHojaSeq(ctx, now.Year())
		if err != nil {
			return HojaViajera{}, err
		}
		hoja.Folio = Folio("HV", now.Year(), seq)
		created, err := s.repo.CreateHoja(ctx, hoja)
		if errors.Is(err, ErrDuplicateFolio) {
			continue
		}
		if err != nil {
			return HojaViajera{}, err
		}
		s.recordAudit(ctx, actorID, "HOJA_CREATED", created.Folio, nil)
		return created, nil
	}
	return HojaViajera{}, ErrDuplicateFolio
}

// GetHoja loads one hoja viajera.
func (s *Service) GetHoja(ctx context.Context, id int64) (HojaViajera, error) {
	return s.repo.GetHoja(ctx, id)
}

// ListHojas returns hojas matching the status filter.
func (s *Service) ListHojas(ctx context.Context, status HojaStatus, limit int) ([]HojaViajera, error) {
	return s.repo.ListHojas(ctx, status, limit)
}

// AdvanceHoja moves a hoja to its next lifecycle state. Skipping states is
// rejected.
func (s *Service) AdvanceHoja(ctx context.Context, id int64, to HojaStatus, actorID string) (HojaViajera, error) {
	hoja, err := s.repo.GetHoja(ctx, id)
	if err != nil {
		return HojaViajera{}, err
	}
	if !hoja.Status.CanTransitionTo(to) {
		return HojaViajera{}, fmt.Errorf("%w: %s -> %s", ErrInvalidState, hoja.Status, to)
	}
	if err := s.repo.UpdateHojaStatus(ctx, id, hoja.Status, to, s.now()); err != nil {
		return HojaViajera{}, err
	}
	s.recordAudit(ctx, actorID, "HOJA_ADVANCED", hoja.Folio, map[string]any{"to": to})
	return s.repo.GetHoja(ctx, id)
}

func (s *Service) raiseShortage(ctx context.Context, folio string, short *inventory.InsufficientStockError, actorID string) {
	if s.shortages == nil {
		return
	}
	_, _ = s.shortages.Raise(ctx, shortage.RaiseInput{
		ProductID: short.ProductID,
		Quantity:  short.Shortage(),
		Reason:    fmt.Sprintf("faltante al surtir pedido %s", folio),
		Urgent:    true,
		ActorID:   actorID,
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, folio string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "orders",
		EntityID: folio,
		Meta:     meta,
	})
}
