package ordersync

import (
	"time"

	"gorm.io/gorm"
)

// Sync run statuses
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// SyncRun records one sync invocation for an account: how many orders were
// processed, how many failed, and the error that aborted the run if any
type SyncRun struct {
	gorm.Model      `json:"-"`
	RunID           string     `gorm:"uniqueIndex" json:"run_id"`
	AccountName     string     `gorm:"index" json:"account_name"`
	Status          string     `json:"status"`
	OrdersProcessed int        `json:"orders_processed"`
	OrdersFailed    int        `json:"orders_failed"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}
