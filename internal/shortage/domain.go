package shortage

import (
	"errors"
	"time"
)

// Request is a flagged article request raised when inventory cannot cover a
// demand. Requests are terminal: once created they carry no further state.
type Request struct {
	ID        string
	ProductID int64
	Quantity  int64
	Reason    string
	Urgent    bool
	CreatedAt time.Time
}

// ListFilter narrows List results.
type ListFilter struct {
	ProductID int64
	Urgent    *bool
	Limit     int
}

var (
	// ErrValidation indicates invalid input to Raise.
	ErrValidation = errors.New("shortage: invalid input")
)
