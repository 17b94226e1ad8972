package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockScan is the task type for the minimum-stock sweep.
	TaskTypeLowStockScan = "inventory:lowstock"
	// TaskTypeNotifyDispatch is the task type for notification fan-out.
	TaskTypeNotifyDispatch = "notify:dispatch"
)

// LowStockScanPayload configures one stock sweep.
type LowStockScanPayload struct {
	// RaiseUrgent marks the resulting shortage requests urgent. The nightly
	// sweep leaves this false; fulfillment shortfalls raise their own.
	RaiseUrgent bool `json:"raise_urgent"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockScan, data), nil
}

// NotifyDispatchPayload configures one dispatch pass.
type NotifyDispatchPayload struct {
	// WindowMinutes bounds how far back the pass looks for fresh notices.
	WindowMinutes int `json:"window_minutes"`
}

// NewNotifyDispatchTask constructs an Asynq task.
func NewNotifyDispatchTask(payload NotifyDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyDispatch, data), nil
}
