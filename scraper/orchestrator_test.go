package scraper

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"rentsync/config"
	"rentsync/models"
	"rentsync/storage"
	"rentsync/tracker"
)

func newOrchestratorFixture(t *testing.T) (*Orchestrator, *tracker.Tracker, *storage.SQLiteStore) {
	t.Helper()
	ops, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { ops.Close() })

	cfg := &config.Config{
		LogsDir: t.TempDir(),
		Sites: map[string]*config.SiteConfig{
			"vendor-a": {ID: "vendor-a", Enabled: true, OrderURL: "https://portal.example.com/orders"},
			"parked":   {ID: "parked", Enabled: false},
		},
	}

	trk := tracker.New()
	// No browser session: the first dereference inside the run panics,
	// which is what the recovery path has to absorb.
	return NewOrchestrator(cfg, nil, trk, nil, ops, nil), trk, ops
}

func TestRunSiteRejectsUnknownAndDisabledSites(t *testing.T) {
	o, trk, _ := newOrchestratorFixture(t)

	if err := o.RunSite(context.Background(), "nope"); err == nil {
		t.Error("unknown site accepted")
	}
	if err := o.RunSite(context.Background(), "parked"); err == nil {
		t.Error("disabled site accepted")
	}
	if trk.Active() {
		t.Error("rejected runs must not take the lock")
	}
}

func TestRunSiteReleasesLockWhenRunPanics(t *testing.T) {
	o, trk, ops := newOrchestratorFixture(t)

	err := o.RunSite(context.Background(), "vendor-a")
	if err == nil {
		t.Fatal("expected an error from the crashed run")
	}
	if !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("error = %v, want the panic surfaced", err)
	}

	if trk.Active() {
		t.Fatal("crashed run left the lock held")
	}
	snapshot := trk.Snapshot()
	if snapshot.State != models.RunStateError {
		t.Errorf("state = %s, want %s", snapshot.State, models.RunStateError)
	}

	// The run record must be closed out, not left running.
	last, err := ops.GetLastRunTime("vendor-a")
	if err != nil {
		t.Fatalf("last run lookup failed: %v", err)
	}
	if last.IsZero() {
		t.Error("crashed run never stamped the cadence clock")
	}

	// And a new run must be able to start.
	if err := trk.Begin("vendor-a", "next"); err != nil {
		t.Fatalf("lock not reusable after crash: %v", err)
	}
}
