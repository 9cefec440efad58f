package tracker

import (
	"fmt"
	"sync"
	"time"

	"rentsync/models"
)

const maxLogLines = 500

// Tracker is the pollable run state machine:
// idle → running → (awaiting_user ⇄ running) → success | error.
// Begin doubles as the process-wide run-lock; End is the guaranteed
// cleanup that makes the engine idle-ready again.
type Tracker struct {
	mu              sync.Mutex
	active          bool
	state           models.RunState
	message         string
	siteID          string
	runID           string
	lastRunAt       *time.Time
	needsAttention  bool
	heartbeatActive bool
	lastResult      *models.RunResult
	logs            []string
}

func New() *Tracker {
	return &Tracker{state: models.RunStateIdle}
}

// Begin acquires the run-lock and transitions to running. It fails
// when a run is already active so triggers can never overlap.
func (t *Tracker) Begin(siteID, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return fmt.Errorf("run already active for site %s", t.siteID)
	}

	t.active = true
	t.state = models.RunStateRunning
	t.siteID = siteID
	t.runID = runID
	t.message = "starting"
	t.needsAttention = false
	t.appendLog(fmt.Sprintf("run %s started for %s", runID, siteID))
	return nil
}

// Active reports whether a run holds the lock.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Tracker) SetMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = msg
	t.appendLog(msg)
}

// AwaitUser transitions to awaiting_user and raises needsAttention.
func (t *Tracker) AwaitUser(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = models.RunStateAwaitingUser
	t.message = msg
	t.needsAttention = true
	t.appendLog(msg)
}

// Resume returns from awaiting_user to running.
func (t *Tracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = models.RunStateRunning
	t.needsAttention = false
	t.appendLog("challenge cleared, resuming")
}

func (t *Tracker) Succeed(result *models.RunResult) {
	t.finish(models.RunStateSuccess, "completed", result)
}

func (t *Tracker) Fail(msg string) {
	t.finish(models.RunStateError, msg, nil)
}

func (t *Tracker) finish(state models.RunState, msg string, result *models.RunResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.active = false
	t.state = state
	t.message = msg
	t.lastRunAt = &now
	t.needsAttention = false
	if result != nil {
		t.lastResult = result
	}
	t.appendLog(fmt.Sprintf("run %s finished: %s", t.runID, state))
}

func (t *Tracker) SetHeartbeat(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heartbeatActive = active
}

func (t *Tracker) Log(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLog(msg)
}

// appendLog requires t.mu held.
func (t *Tracker) appendLog(msg string) {
	line := time.Now().Format("15:04:05") + " " + msg
	t.logs = append(t.logs, line)
	if len(t.logs) > maxLogLines {
		t.logs = t.logs[len(t.logs)-maxLogLines:]
	}
}

// Snapshot returns a copy of the current state for polling UIs.
func (t *Tracker) Snapshot() models.RunSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	logs := make([]string, len(t.logs))
	copy(logs, t.logs)

	return models.RunSnapshot{
		State:           t.state,
		Message:         t.message,
		SiteID:          t.siteID,
		RunID:           t.runID,
		LastRunAt:       t.lastRunAt,
		NeedsAttention:  t.needsAttention,
		HeartbeatActive: t.heartbeatActive,
		LastResult:      t.lastResult,
		Logs:            logs,
	}
}
