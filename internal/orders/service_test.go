package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/shortage"
)

type fakeNotification struct {
	Type         string
	TargetModule string
	Message      string
}

type memoryStore struct {
	orders        map[int64]*CustomerOrder
	hojas         map[int64]*HojaViajera
	stock         map[int64]int64
	notifications []fakeNotification
	nextID        int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders: make(map[int64]*CustomerOrder),
		hojas:  make(map[int64]*HojaViajera),
		stock:  make(map[int64]int64),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]int64, len(m.stock))
	for k, v := range m.stock {
		snapshot[k] = v
	}
	orderCopies := make(map[int64]CustomerOrder, len(m.orders))
	for k, v := range m.orders {
		cp := *v
		cp.Items = append([]OrderItem(nil), v.Items...)
		orderCopies[k] = cp
	}
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		// Roll back.
		m.stock = snapshot
		for k, v := range orderCopies {
			cp := v
			m.orders[k] = &cp
		}
		return err
	}
	return nil
}

func (m *memoryStore) NextFolioSeq(ctx context.Context, prefix string, year int) (int64, error) {
	var n int64 = 1
	for _, o := range m.orders {
		if o.Pipeline.FolioPrefix() == prefix {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) CreateOrder(ctx context.Context, order CustomerOrder) (CustomerOrder, error) {
	for _, o := range m.orders {
		if o.Folio == order.Folio {
			return CustomerOrder{}, ErrDuplicateFolio
		}
	}
	m.nextID++
	order.ID = m.nextID
	for i := range order.Items {
		m.nextID++
		order.Items[i].ID = m.nextID
		order.Items[i].OrderID = order.ID
	}
	cp := order
	cp.Items = append([]OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return order, nil
}

func (m *memoryStore) GetOrder(ctx context.Context, orderID int64) (CustomerOrder, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return CustomerOrder{}, ErrNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return cp, nil
}

func (m *memoryStore) ListOrders(ctx context.Context, filter ListFilter) ([]CustomerOrder, error) {
	var out []CustomerOrder
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memoryStore) CreateHoja(ctx context.Context, hoja HojaViajera) (HojaViajera, error) {
	for _, h := range m.hojas {
		if h.Folio == hoja.Folio {
			return HojaViajera{}, ErrDuplicateFolio
		}
	}
	m.nextID++
	hoja.ID = m.nextID
	cp := hoja
	m.hojas[hoja.ID] = &cp
	return hoja, nil
}

func (m *memoryStore) NextHojaSeq(ctx context.Context, year int) (int64, error) {
	return int64(len(m.hojas)) + 1, nil
}

func (m *memoryStore) GetHoja(ctx context.Context, id int64) (HojaViajera, error) {
	h, ok := m.hojas[id]
	if !ok {
		return HojaViajera{}, ErrNotFound
	}
	return *h, nil
}

func (m *memoryStore) ListHojas(ctx context.Context, status HojaStatus, limit int) ([]HojaViajera, error) {
	var out []HojaViajera
	for _, h := range m.hojas {
		out = append(out, *h)
	}
	return out, nil
}

func (m *memoryStore) UpdateHojaStatus(ctx context.Context, id int64, from, to HojaStatus, at time.Time) error {
	h, ok := m.hojas[id]
	if !ok {
		return ErrNotFound
	}
	if h.Status != from {
		return ErrInvalidState
	}
	h.Status = to
	return nil
}

func (m *memoryStore) AvailableQuantity(ctx context.Context, productID int64) (int64, error) {
	return m.stock[productID], nil
}

type memoryTx memoryStore

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, orderID int64) (CustomerOrder, error) {
	return (*memoryStore)(t).GetOrder(ctx, orderID)
}

func (t *memoryTx) ConsumeStock(ctx context.Context, productID, quantity int64) error {
	available := t.stock[productID]
	if available < quantity {
		return &inventory.InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
	}
	t.stock[productID] = available - quantity
	return nil
}

func (t *memoryTx) MarkItemFulfilled(ctx context.Context, itemID int64) error {
	for _, o := range t.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items[i].Fulfilled = true
				return nil
			}
		}
	}
	return ErrNotFound
}

func (t *memoryTx) SetOrderFulfilled(ctx context.Context, orderID int64, at time.Time) error {
	o, ok := t.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != OrderPendiente {
		return ErrInvalidState
	}
	o.Status = OrderSurtido
	o.FulfilledAt = &at
	return nil
}

func (t *memoryTx) InsertNotification(ctx context.Context, typ, title, message, targetModule string) error {
	t.notifications = append(t.notifications, fakeNotification{Type: typ, TargetModule: targetModule, Message: message})
	return nil
}

type shortageRecorder struct {
	raised []shortage.RaiseInput
}

func (s *shortageRecorder) Raise(ctx context.Context, input shortage.RaiseInput) (shortage.Request, error) {
	s.raised = append(s.raised, input)
	return shortage.Request{ID: "sr-1", ProductID: input.ProductID, Quantity: input.Quantity, Urgent: input.Urgent}, nil
}

func newTestService(store *memoryStore) (*Service, *shortageRecorder) {
	shortages := &shortageRecorder{}
	return NewService(store, store, shortages, nil, nil, nil), shortages
}

func seedOrder(t *testing.T, svc *Service, items ...OrderItemInput) CustomerOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Pipeline:  PipelineBeneficencia,
		ClientRef: "CLIENTE-01",
		Items:     items,
	})
	require.NoError(t, err)
	return order
}

func TestFulfillConsumesStockAndNotifies(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 5
	svc, shortages := newTestService(store)
	order := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 3})

	fulfilled, err := svc.Fulfill(context.Background(), order.ID, "u-1")
	require.NoError(t, err)
	require.Equal(t, OrderSurtido, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledAt)
	require.True(t, fulfilled.Items[0].Fulfilled)
	require.EqualValues(t, 2, store.stock[1])
	require.Empty(t, shortages.raised)

	require.Len(t, store.notifications, 1)
	require.Equal(t, "PRODUCCION", store.notifications[0].TargetModule)
	require.Contains(t, store.notifications[0].Message, fulfilled.Folio)
}

func TestFulfillShortRaisesShortage(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 2
	svc, shortages := newTestService(store)
	order := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 5})

	_, err := svc.Fulfill(context.Background(), order.ID, "u-1")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.EqualValues(t, 3, short.Shortage())

	// Nothing mutated, one urgent shortage request.
	require.EqualValues(t, 2, store.stock[1])
	reloaded, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderPendiente, reloaded.Status)
	require.False(t, reloaded.Items[0].Fulfilled)
	require.Len(t, shortages.raised, 1)
	require.True(t, shortages.raised[0].Urgent)
	require.EqualValues(t, 3, shortages.raised[0].Quantity)
	require.Contains(t, shortages.raised[0].Reason, order.Folio)
	require.Empty(t, store.notifications)
}

func TestFulfillAllOrNothing(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 10
	store.stock[2] = 1
	svc, shortages := newTestService(store)
	order := seedOrder(t, svc,
		OrderItemInput{ProductID: 1, Quantity: 4},
		OrderItemInput{ProductID: 2, Quantity: 2},
	)

	_, err := svc.Fulfill(context.Background(), order.ID, "u-1")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// The first item passed its check but must not stay consumed.
	require.EqualValues(t, 10, store.stock[1])
	require.EqualValues(t, 1, store.stock[2])
	reloaded, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	for _, item := range reloaded.Items {
		require.False(t, item.Fulfilled)
	}
	require.Len(t, shortages.raised, 1)
	require.EqualValues(t, 2, shortages.raised[0].ProductID)
}

func TestFulfillLastUnitsRace(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 3
	svc, shortages := newTestService(store)
	first := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 3})
	second := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 3})

	_, err := svc.Fulfill(context.Background(), first.ID, "u-1")
	require.NoError(t, err)

	_, err = svc.Fulfill(context.Background(), second.ID, "u-2")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	require.EqualValues(t, 0, store.stock[1])
	require.Len(t, shortages.raised, 1)
	require.EqualValues(t, 3, shortages.raised[0].Quantity)
}

func TestFulfillRejectsNonPending(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 10
	svc, _ := newTestService(store)
	order := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 3})

	_, err := svc.Fulfill(context.Background(), order.ID, "u-1")
	require.NoError(t, err)

	_, err = svc.Fulfill(context.Background(), order.ID, "u-1")
	require.ErrorIs(t, err, ErrAlreadyFulfilled)
	require.EqualValues(t, 7, store.stock[1])
}

func TestFulfillOrderNotFound(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())
	_, err := svc.Fulfill(context.Background(), 99, "u-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrderFolios(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)
	year := time.Now().UTC().Year()

	ben := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 1})
	require.Equal(t, Folio("BEN", year, 1), ben.Folio)

	sed, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Pipeline: PipelineSedena,
		Items:    []OrderItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, Folio("SED", year, 1), sed.Folio)

	ben2 := seedOrder(t, svc, OrderItemInput{ProductID: 1, Quantity: 1})
	require.Equal(t, Folio("BEN", year, 2), ben2.Folio)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{Pipeline: "OTRO", Items: []OrderItemInput{{ProductID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{Pipeline: PipelineBeneficencia})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		Pipeline: PipelineBeneficencia,
		Items:    []OrderItemInput{{ProductID: 1, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestHojaLifecycle(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	hoja, err := svc.CreateHojaViajera(ctx, "CLIENTE-02", "u-1")
	require.NoError(t, err)
	require.Equal(t, HojaCreada, hoja.Status)
	require.Equal(t, Folio("HV", time.Now().UTC().Year(), 1), hoja.Folio)

	// Skipping a state is rejected.
	_, err = svc.AdvanceHoja(ctx, hoja.ID, HojaEnProceso, "u-1")
	require.ErrorIs(t, err, ErrInvalidState)

	for _, next := range []HojaStatus{HojaImpresa, HojaEntregadaAlmacen, HojaEnProceso, HojaCompletada} {
		hoja, err = svc.AdvanceHoja(ctx, hoja.ID, next, "u-1")
		require.NoError(t, err)
		require.Equal(t, next, hoja.Status)
	}

	// Terminal state stays terminal.
	_, err = svc.AdvanceHoja(ctx, hoja.ID, HojaCompletada, "u-1")
	require.ErrorIs(t, err, ErrInvalidState)
}
