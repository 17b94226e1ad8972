package notify

import (
	"errors"
	"time"
)

// Notification is an append-only cross-module notice.
type Notification struct {
	ID           int64
	Type         string
	Title        string
	Message      string
	TargetModule string
	Read         bool
	CreatedAt    time.Time
}

// Target modules whose dashboards consume notifications.
const (
	ModuleProduccion    = "PRODUCCION"
	ModuleAlmacen       = "ALMACEN"
	ModuleDistribuidora = "DISTRIBUIDORA"
)

// KnownModule reports whether module is a known target.
func KnownModule(module string) bool {
	switch module {
	case ModuleProduccion, ModuleAlmacen, ModuleDistribuidora:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates a missing notification.
	ErrNotFound = errors.New("notify: notification not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("notify: invalid input")
)
