package models

import "time"

// SyncLogEntry is one durable log line, written as JSON-lines into the
// per-site per-day log file and mirrored into the in-memory tail.
type SyncLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	OrderNos  []string  `json:"order_nos,omitempty"`
}

// OfflineSyncStatus is the live state of one site's offline
// reconciliation worker.
type OfflineSyncStatus struct {
	SiteID             string     `json:"site_id"`
	Enabled            bool       `json:"enabled"`
	IsRunning          bool       `json:"is_running"`
	LastRunAt          *time.Time `json:"last_run_at,omitempty"`
	NextRunAt          *time.Time `json:"next_run_at,omitempty"`
	SuccessCount       int        `json:"success_count"`
	FailureCount       int        `json:"failure_count"`
	LastError          string     `json:"last_error,omitempty"`
	LastSyncedOrderNos []string   `json:"last_synced_order_nos,omitempty"`
}
