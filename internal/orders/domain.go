package orders

import (
	"errors"
	"fmt"
	"time"
)

// PipelineType tags which production pipeline an order belongs to.
type PipelineType string

// Pipeline types.
const (
	PipelineBeneficencia PipelineType = "BENEFICENCIA"
	PipelineSedena       PipelineType = "SEDENA"
)

// Valid reports whether the pipeline type is known.
func (p PipelineType) Valid() bool {
	return p == PipelineBeneficencia || p == PipelineSedena
}

// FolioPrefix returns the folio prefix for the pipeline.
func (p PipelineType) FolioPrefix() string {
	if p == PipelineSedena {
		return "SED"
	}
	return "BEN"
}

// OrderStatus enumerates customer order states.
type OrderStatus string

// Order states. PENDIENTE orders await fulfillment, SURTIDO orders have had
// all items consumed from inventory, TERMINADO orders finished production.
const (
	OrderPendiente OrderStatus = "PENDIENTE"
	OrderSurtido   OrderStatus = "SURTIDO"
	OrderTerminado OrderStatus = "TERMINADO"
)

// HojaStatus enumerates hoja viajera lifecycle states.
type HojaStatus string

// Hoja viajera states, in lifecycle order.
const (
	HojaCreada           HojaStatus = "CREADA"
	HojaImpresa          HojaStatus = "IMPRESA"
	HojaEntregadaAlmacen HojaStatus = "ENTREGADA_ALMACEN"
	HojaEnProceso        HojaStatus = "EN_PROCESO"
	HojaCompletada       HojaStatus = "COMPLETADA"
)

var hojaOrder = map[HojaStatus]int{
	HojaCreada:           0,
	HojaImpresa:          1,
	HojaEntregadaAlmacen: 2,
	HojaEnProceso:        3,
	HojaCompletada:       4,
}

// CanTransitionTo reports whether next is the immediate successor state.
func (s HojaStatus) CanTransitionTo(next HojaStatus) bool {
	from, ok := hojaOrder[s]
	if !ok {
		return false
	}
	to, ok := hojaOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// HojaViajera is the traveling sheet that accompanies a physical batch from
// print to completion.
type HojaViajera struct {
	ID               int64
	Folio            string
	ClientRef        string
	Status           HojaStatus
	CreatedAt        time.Time
	PrintedAt        *time.Time
	DeliveredAt      *time.Time
	ProcessStartedAt *time.Time
	CompletedAt      *time.Time
}

// OrderItem is one line of a customer order.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	Fulfilled bool
}

// CustomerOrder is a beneficencia or sedena order.
type CustomerOrder struct {
	ID          int64
	Folio       string
	Pipeline    PipelineType
	ClientRef   string
	Status      OrderStatus
	Guarantee   bool
	PlacedAt    time.Time
	FulfilledAt *time.Time
	Items       []OrderItem
}

// ListFilter narrows order listings.
type ListFilter struct {
	Pipeline PipelineType
	Status   OrderStatus
	Limit    int
}

var (
	// ErrNotFound indicates a missing order or hoja.
	ErrNotFound = errors.New("orders: not found")
	// ErrInvalidState indicates a transition from a disallowed state.
	ErrInvalidState = errors.New("orders: invalid state transition")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("orders: invalid input")
	// ErrDuplicateFolio indicates a folio collision on insert.
	ErrDuplicateFolio = errors.New("orders: folio already exists")
	// ErrAlreadyFulfilled indicates a repeated fulfillment attempt.
	ErrAlreadyFulfilled = errors.New("orders: order already fulfilled")
)

// Folio builds a folio like BEN-2026-0042.
func Folio(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}
