package catalog

import (
	"errors"
	"time"
)

// Product is the master-data record referenced by inventory and order lines.
// Administrative edits aside, products are immutable once referenced.
type Product struct {
	ID           int64
	Code         string
	Name         string
	Description  string
	Category     string
	MinimumStock int64
	Unit         string
	CreatedAt    time.Time
}

// LowStockProduct pairs a product with its on-hand total when the total sits
// under the minimum threshold.
type LowStockProduct struct {
	ProductID    int64
	Code         string
	Name         string
	MinimumStock int64
	OnHand       int64
}

var (
	// ErrNotFound indicates a missing product.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrDuplicateCode indicates a code collision on create.
	ErrDuplicateCode = errors.New("catalog: product code already exists")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
)
