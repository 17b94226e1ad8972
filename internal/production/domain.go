package production

import (
	"errors"
	"time"

	"github.com/optica-erp/optica-erp/internal/orders"
)

// CuttingStatus enumerates cutting control states.
type CuttingStatus string

// Cutting states. A piece enters (ENTRADA), is worked (EN_PROCESO), exits to
// inspection (SALIDA) and leaves inspection as APROBADO, RETALLADO or MERMA.
// RETALLADO pieces wait for an explicit resubmission into cutting; there is
// no automatic loop.
const (
	CuttingEntrada   CuttingStatus = "ENTRADA"
	CuttingEnProceso CuttingStatus = "EN_PROCESO"
	CuttingSalida    CuttingStatus = "SALIDA"
	CuttingAprobado  CuttingStatus = "APROBADO"
	CuttingRetallado CuttingStatus = "RETALLADO"
	CuttingMerma     CuttingStatus = "MERMA"
)

// QualityOutcome enumerates inspection verdicts.
type QualityOutcome string

// Inspection verdicts.
const (
	OutcomeOK        QualityOutcome = "OK"
	OutcomeRetallado QualityOutcome = "RETALLADO"
	OutcomeMerma     QualityOutcome = "MERMA"
)

// Valid reports whether the outcome is known.
func (o QualityOutcome) Valid() bool {
	return o == OutcomeOK || o == OutcomeRetallado || o == OutcomeMerma
}

// Record tracks one order's progress through a pipeline. Unique per
// (order, pipeline); re-admitting an order updates the existing row.
type Record struct {
	ID         int64
	OrderID    int64
	Pipeline   orders.PipelineType
	EnTallado  bool
	EnBisel    bool
	Completado bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CuttingControl is the work ticket for one pass through the cutting stage.
type CuttingControl struct {
	ID             int64
	ProductionID   int64
	Operator       string
	ClientLabel    string
	Status         CuttingStatus
	ReworkAttempts int
	EnteredAt      time.Time
	StartedAt      *time.Time
	ExitedAt       *time.Time
}

// QualityInspection records one inspection event.
type QualityInspection struct {
	ID            int64
	ControlID     int64
	Inspector     string
	Outcome       QualityOutcome
	RequiresBevel bool
	Notes         string
	CreatedAt     time.Time
}

// ScrapRecord documents a scrapped unit. Quantity is fixed at one per
// occurrence in this workflow.
type ScrapRecord struct {
	ID        int64
	ProductID int64
	Operator  string
	Quantity  int64
	Category  string
	Reason    string
	CreatedAt time.Time
}

// ScrapCategoryTallado tags scrap produced by the cutting stage.
const ScrapCategoryTallado = "PRODUCCION_TALLADO"

// ScrapReasonQualityReject is the motive recorded for pieces scrapped by a
// quality rejection.
const ScrapReasonQualityReject = "Rechazado en control de calidad"

var (
	// ErrNotFound indicates a missing production record or control.
	ErrNotFound = errors.New("production: not found")
	// ErrInvalidState indicates a transition from a disallowed state.
	ErrInvalidState = errors.New("production: invalid state transition")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("production: invalid input")
)
