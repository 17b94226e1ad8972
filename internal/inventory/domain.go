package inventory

import (
	"errors"
	"fmt"
	"time"
)

// Record tracks on-hand quantity for a product at one warehouse location.
// The (ProductID, Location) pair is unique; quantity never goes below zero.
type Record struct {
	ID        int64
	ProductID int64
	Location  string
	Quantity  int64
	Lot       string
	UpdatedAt time.Time
}

// IncrementInput describes an inbound stock movement. Accumulating: calling
// twice adds twice, there is no deduplication at this level.
type IncrementInput struct {
	ProductID int64
	Location  string
	Quantity  int64
	Lot       string
	ActorID   string
}

// DecrementInput describes an outbound stock movement.
type DecrementInput struct {
	ProductID int64
	Location  string
	Quantity  int64
	ActorID   string
	RefModule string
	Reason    string
}

// ListFilter narrows record listings.
type ListFilter struct {
	Location  string
	ProductID int64
	Limit     int
}

var (
	// ErrInsufficientStock is the sentinel matched by errors.Is for any
	// decrement that would drive a record negative.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrRecordNotFound indicates no ledger row for the requested pair.
	ErrRecordNotFound = errors.New("inventory: record not found")
)

// InsufficientStockError carries the product and shortfall of a refused
// decrement. Unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Shortage reports how many units the refused decrement was missing.
func (e *InsufficientStockError) Shortage() int64 { return e.Requested - e.Available }
