package models

import "time"

// RunState is the pollable engine state.
type RunState string

const (
	RunStateIdle         RunState = "idle"
	RunStateRunning      RunState = "running"
	RunStateAwaitingUser RunState = "awaiting_user"
	RunStateSuccess      RunState = "success"
	RunStateError        RunState = "error"
)

// RunResult summarizes one completed engine run.
type RunResult struct {
	SiteID       string         `json:"site_id"`
	Total        int            `json:"total"`
	Upserted     int            `json:"upserted"`
	SkippedDone  int            `json:"skipped_done"`
	Purged       int            `json:"purged"`
	Errors       int            `json:"errors"`
	Orders       []ScrapedOrder `json:"orders,omitempty"`
}

// RunSnapshot is what the status endpoint returns.
type RunSnapshot struct {
	State           RunState   `json:"state"`
	Message         string     `json:"message"`
	SiteID          string     `json:"site_id,omitempty"`
	RunID           string     `json:"run_id,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	NeedsAttention  bool       `json:"needs_attention"`
	HeartbeatActive bool       `json:"heartbeat_active"`
	LastResult      *RunResult `json:"last_result,omitempty"`
	Logs            []string   `json:"logs"`
}

// SyncRun is the durable per-run record in the operational store.
type SyncRun struct {
	ID          int64      `json:"id" db:"id"`
	RunID       string     `json:"run_id" db:"run_id"`
	SiteID      string     `json:"site_id" db:"site_id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	State       RunState   `json:"state" db:"state"`
	OrdersFound int        `json:"orders_found" db:"orders_found"`
	Upserted    int        `json:"upserted" db:"upserted"`
	Purged      int        `json:"purged" db:"purged"`
	ErrorsCount int        `json:"errors_count" db:"errors_count"`
	Message     string     `json:"message" db:"message"`
}

// SiteStats is the per-site aggregate refreshed after each run.
type SiteStats struct {
	SiteID         string     `json:"site_id" db:"site_id"`
	LastRunAt      *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunState   string     `json:"last_run_state" db:"last_run_state"`
	TotalRuns      int        `json:"total_runs" db:"total_runs"`
	SuccessRate    float64    `json:"success_rate" db:"success_rate"`
	AvgDurationSec int        `json:"avg_duration_sec" db:"avg_duration_sec"`
}
