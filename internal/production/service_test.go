package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/orders"
)

type fakeNotification struct {
	Type         string
	TargetModule string
}

type memoryStore struct {
	records       map[int64]*Record
	controls      map[int64]*CuttingControl
	inspections   []QualityInspection
	scrap         []ScrapRecord
	orders        map[int64]*orders.CustomerOrder
	stock         map[int64]int64
	notifications []fakeNotification
	nextID        int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:  make(map[int64]*Record),
		controls: make(map[int64]*CuttingControl),
		orders:   make(map[int64]*orders.CustomerOrder),
		stock:    make(map[int64]int64),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Side effects apply directly; tests only exercise committed outcomes
	// and rejected transitions that mutate nothing before failing.
	return fn(ctx, (*memoryTx)(m))
}

func (m *memoryStore) UpsertRecord(ctx context.Context, orderID int64, pipeline orders.PipelineType) (Record, error) {
	for _, rec := range m.records {
		if rec.OrderID == orderID && rec.Pipeline == pipeline {
			rec.EnTallado = true
			rec.UpdatedAt = time.Now()
			return *rec, nil
		}
	}
	m.nextID++
	rec := &Record{ID: m.nextID, OrderID: orderID, Pipeline: pipeline, EnTallado: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.records[rec.ID] = rec
	return *rec, nil
}

func (m *memoryStore) GetRecord(ctx context.Context, id int64) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

func (m *memoryStore) ActiveControl(ctx context.Context, productionID int64) (CuttingControl, error) {
	for _, c := range m.controls {
		if c.ProductionID == productionID && c.Status != CuttingAprobado && c.Status != CuttingMerma {
			return *c, nil
		}
	}
	return CuttingControl{}, ErrNotFound
}

func (m *memoryStore) CreateControl(ctx context.Context, control CuttingControl) (CuttingControl, error) {
	m.nextID++
	control.ID = m.nextID
	cp := control
	m.controls[control.ID] = &cp
	return control, nil
}

func (m *memoryStore) GetControl(ctx context.Context, id int64) (CuttingControl, error) {
	c, ok := m.controls[id]
	if !ok {
		return CuttingControl{}, ErrNotFound
	}
	return *c, nil
}

func (m *memoryStore) ListControls(ctx context.Context, status CuttingStatus, limit int) ([]CuttingControl, error) {
	var out []CuttingControl
	for _, c := range m.controls {
		if status == "" || c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkStarted(ctx context.Context, controlID int64, from []CuttingStatus, at time.Time) error {
	c, ok := m.controls[controlID]
	if !ok {
		return ErrNotFound
	}
	for _, f := range from {
		if c.Status == f {
			c.Status = CuttingEnProceso
			c.StartedAt = &at
			return nil
		}
	}
	return ErrInvalidState
}

func (m *memoryStore) MarkExited(ctx context.Context, controlID int64, at time.Time) error {
	c, ok := m.controls[controlID]
	if !ok {
		return ErrNotFound
	}
	if c.Status != CuttingEnProceso {
		return ErrInvalidState
	}
	c.Status = CuttingSalida
	c.ExitedAt = &at
	return nil
}

func (m *memoryStore) ListScrap(ctx context.Context, limit int) ([]ScrapRecord, error) {
	return m.scrap, nil
}

func (m *memoryStore) GetOrder(ctx context.Context, orderID int64) (orders.CustomerOrder, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return orders.CustomerOrder{}, orders.ErrNotFound
	}
	return *o, nil
}

type memoryTx memoryStore

func (t *memoryTx) GetControlForUpdate(ctx context.Context, controlID int64) (CuttingControl, error) {
	return (*memoryStore)(t).GetControl(ctx, controlID)
}

func (t *memoryTx) GetProduction(ctx context.Context, productionID int64) (Record, error) {
	return (*memoryStore)(t).GetRecord(ctx, productionID)
}

func (t *memoryTx) InsertInspection(ctx context.Context, inspection QualityInspection) (int64, error) {
	t.nextID++
	inspection.ID = t.nextID
	t.inspections = append(t.inspections, inspection)
	return inspection.ID, nil
}

func (t *memoryTx) UpdateControlStatus(ctx context.Context, controlID int64, from, to CuttingStatus) error {
	c, ok := t.controls[controlID]
	if !ok || c.Status != from {
		return ErrInvalidState
	}
	c.Status = to
	return nil
}

func (t *memoryTx) IncrementRework(ctx context.Context, controlID int64) error {
	t.controls[controlID].ReworkAttempts++
	return nil
}

func (t *memoryTx) SetBevel(ctx context.Context, productionID int64) error {
	t.records[productionID].EnBisel = true
	return nil
}

func (t *memoryTx) SetCompleted(ctx context.Context, productionID int64) error {
	t.records[productionID].Completado = true
	t.records[productionID].EnTallado = false
	return nil
}

func (t *memoryTx) CompleteOrder(ctx context.Context, orderID int64) error {
	t.orders[orderID].Status = orders.OrderTerminado
	return nil
}

func (t *memoryTx) FirstOrderItemProduct(ctx context.Context, orderID int64) (int64, error) {
	o, ok := t.orders[orderID]
	if !ok || len(o.Items) == 0 {
		return 0, ErrNotFound
	}
	return o.Items[0].ProductID, nil
}

func (t *memoryTx) InsertScrap(ctx context.Context, scrap ScrapRecord) (int64, error) {
	t.nextID++
	scrap.ID = t.nextID
	t.scrap = append(t.scrap, scrap)
	return scrap.ID, nil
}

func (t *memoryTx) DecrementInventoryClamped(ctx context.Context, productID, quantity int64) error {
	q := t.stock[productID] - quantity
	if q < 0 {
		q = 0
	}
	t.stock[productID] = q
	return nil
}

func (t *memoryTx) InsertNotification(ctx context.Context, typ, title, message, targetModule string) error {
	t.notifications = append(t.notifications, fakeNotification{Type: typ, TargetModule: targetModule})
	return nil
}

func seedFulfilledOrder(store *memoryStore, orderID int64, productIDs ...int64) {
	o := &orders.CustomerOrder{ID: orderID, Folio: "BEN-2026-0001", Pipeline: orders.PipelineBeneficencia, Status: orders.OrderSurtido}
	for _, pid := range productIDs {
		o.Items = append(o.Items, orders.OrderItem{ProductID: pid, Quantity: 1, Fulfilled: true})
	}
	store.orders[orderID] = o
}

func admitted(t *testing.T, svc *Service, store *memoryStore) AdmitResult {
	t.Helper()
	seedFulfilledOrder(store, 1, 10, 11)
	result, err := svc.AdmitToCutting(context.Background(), AdmitInput{
		OrderID:  1,
		Pipeline: orders.PipelineBeneficencia,
		Operator: "Martinez",
	})
	require.NoError(t, err)
	return result
}

func atInspection(t *testing.T, svc *Service, store *memoryStore) CuttingControl {
	t.Helper()
	result := admitted(t, svc, store)
	ctx := context.Background()
	_, err := svc.StartCutting(ctx, result.Control.ID, "u-1")
	require.NoError(t, err)
	control, err := svc.FinishCutting(ctx, result.Control.ID, "u-1")
	require.NoError(t, err)
	require.Equal(t, CuttingSalida, control.Status)
	return control
}

func TestAdmitIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)
	first := admitted(t, svc, store)

	second, err := svc.AdmitToCutting(context.Background(), AdmitInput{
		OrderID:  1,
		Pipeline: orders.PipelineBeneficencia,
		Operator: "Lopez",
	})
	require.NoError(t, err)
	require.Equal(t, first.Record.ID, second.Record.ID)
	require.Equal(t, first.Control.ID, second.Control.ID)
	require.Len(t, store.records, 1)
	require.Len(t, store.controls, 1)
}

func TestAdmitRejectsPendingOrder(t *testing.T) {
	store := newMemoryStore()
	store.orders[1] = &orders.CustomerOrder{ID: 1, Status: orders.OrderPendiente}
	svc := NewService(store, store, nil, nil)

	_, err := svc.AdmitToCutting(context.Background(), AdmitInput{OrderID: 1, Pipeline: orders.PipelineSedena, Operator: "Martinez"})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCuttingTransitions(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)
	result := admitted(t, svc, store)
	ctx := context.Background()

	// Cannot finish before starting.
	_, err := svc.FinishCutting(ctx, result.Control.ID, "u-1")
	require.ErrorIs(t, err, ErrInvalidState)

	control, err := svc.StartCutting(ctx, result.Control.ID, "u-1")
	require.NoError(t, err)
	require.Equal(t, CuttingEnProceso, control.Status)
	require.NotNil(t, control.StartedAt)

	// Cannot start twice.
	_, err = svc.StartCutting(ctx, result.Control.ID, "u-1")
	require.ErrorIs(t, err, ErrInvalidState)

	control, err = svc.FinishCutting(ctx, result.Control.ID, "u-1")
	require.NoError(t, err)
	require.Equal(t, CuttingSalida, control.Status)
	require.NotNil(t, control.ExitedAt)
}

func TestQualityOKCompletesOrder(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)
	control := atInspection(t, svc, store)

	inspection, err := svc.SubmitQualityInspection(context.Background(), InspectionInput{
		ControlID: control.ID,
		Inspector: "Ramirez",
		Outcome:   OutcomeOK,
	})
	require.NoError(t, err)
	require.NotZero(t, inspection.ID)

	require.Equal(t, CuttingAprobado, store.controls[control.ID].Status)
	require.True(t, store.records[control.ProductionID].Completado)
	require.False(t, store.records[control.ProductionID].EnBisel)
	require.Equal(t, orders.OrderTerminado, store.orders[1].Status)
}

func TestQualityOKWithBevel(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)
	control := atInspection(t, svc, store)

	_, err := svc.SubmitQualityInspection(context.Background(), InspectionInput{
		ControlID:     control.ID,
		Inspector:     "Ramirez",
		Outcome:       OutcomeOK,
		RequiresBevel: true,
	})
	require.NoError(t, err)

	rec := store.records[control.ProductionID]
	require.True(t, rec.EnBisel)
	require.False(t, rec.Completado)
	// Bevel continues externally; the order does not finish here.
	require.Equal(t, orders.OrderSurtido, store.orders[1].Status)
}

func TestQualityRetallado(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)
	control := atInspection(t, svc, store)
	ctx := context.Background()

	_, err := svc.SubmitQualityInspection(ctx, InspectionInput{
		ControlID: control.ID,
		Inspector: "Ramirez",
		Outcome:   OutcomeRetallado,
		Notes:     "borde irregular",
	})
	require.NoError(t, err)

	c := store.controls[control.ID]
	require.Equal(t, CuttingRetallado, c.Status)
	require.Equal(t, 1, c.ReworkAttempts)
	require.Empty(t, store.scrap)
	require.Equal(t, orders.OrderSurtido, store.orders[1].Status)

	// Resubmission: RETALLADO re-enters cutting explicitly.
	restarted, err := svc.StartCutting(ctx, control.ID, "u-1")
	require.NoError(t, err)
	require.Equal(t, CuttingEnProceso, restarted.Status)

	_, err = svc.FinishCutting(ctx, control.ID, "u-1")
	require.NoError(t, err)
	_, err = svc.SubmitQualityInspection(ctx, InspectionInput{ControlID: control.ID, Inspector: "Ramirez", Outcome: OutcomeRetallado})
	require.NoError(t, err)
	require.Equal(t, 2, store.controls[control.ID].ReworkAttempts)
}

func TestQualityMerma(t *testing.T) {
	store := newMemoryStore()
	store.stock[10] = 4
	svc := NewService(store, store, nil, nil)
	control := atInspection(t, svc, store)

	inspection, err := svc.SubmitQualityInspection(context.Background(), InspectionInput{
		ControlID: control.ID,
		Inspector: "Ramirez",
		Outcome:   OutcomeMerma,
		Notes:     "fractura en pulido",
	})
	require.NoError(t, err)

	c := store.controls[control.ID]
	require.Equal(t, CuttingMerma, c.Status)
	require.Equal(t, 0, c.ReworkAttempts)

	// Scrap targets the order's first line item, quantity one, with the
	// fixed rejection motive; the inspector's observations stay on the
	// inspection.
	require.Len(t, store.scrap, 1)
	require.EqualValues(t, 10, store.scrap[0].ProductID)
	require.EqualValues(t, 1, store.scrap[0].Quantity)
	require.Equal(t, ScrapCategoryTallado, store.scrap[0].Category)
	require.Equal(t, ScrapReasonQualityReject, store.scrap[0].Reason)
	require.Equal(t, "Martinez", store.scrap[0].Operator)
	require.Equal(t, "fractura en pulido", inspection.Notes)

	require.EqualValues(t, 3, store.stock[10])
	require.Len(t, store.notifications, 1)
	require.Equal(t, "ALMACEN", store.notifications[0].TargetModule)
	// Order status is untouched by merma.
	require.Equal(t, orders.OrderSurtido, store.orders[1].Status)
}

func TestQualityRequiresSalida(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)
	result := admitted(t, svc, store)

	_, err := svc.SubmitQualityInspection(context.Background(), InspectionInput{
		ControlID: result.Control.ID,
		Inspector: "Ramirez",
		Outcome:   OutcomeOK,
	})
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, store.inspections)
}

func TestQualityValidation(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, nil, nil)

	_, err := svc.SubmitQualityInspection(context.Background(), InspectionInput{ControlID: 1, Outcome: OutcomeOK})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitQualityInspection(context.Background(), InspectionInput{ControlID: 1, Inspector: "Ramirez", Outcome: "DESCONOCIDO"})
	require.ErrorIs(t, err, ErrValidation)
}
