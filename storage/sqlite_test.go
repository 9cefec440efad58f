package storage

import (
	"path/filepath"
	"testing"
	"time"

	"rentsync/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOfflineSyncStateRoundTrip(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	next := now.Add(10 * time.Minute)
	in := &models.OfflineSyncStatus{
		SiteID:             "vendor-a",
		Enabled:            true,
		IsRunning:          true,
		LastRunAt:          &now,
		NextRunAt:          &next,
		SuccessCount:       3,
		FailureCount:       1,
		LastError:          "timeout",
		LastSyncedOrderNos: []string{"A1", "A2"},
	}
	if err := store.SaveOfflineSyncState(in); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	out, err := store.GetOfflineSyncState("vendor-a")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	// A pass in flight must be observable between save and finish.
	if !out.Enabled || !out.IsRunning {
		t.Errorf("enabled=%v running=%v, want both true", out.Enabled, out.IsRunning)
	}
	if out.SuccessCount != 3 || out.FailureCount != 1 || out.LastError != "timeout" {
		t.Errorf("counters = %+v", out)
	}
	if len(out.LastSyncedOrderNos) != 2 {
		t.Errorf("order nos = %v", out.LastSyncedOrderNos)
	}

	in.IsRunning = false
	if err := store.SaveOfflineSyncState(in); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	out, err = store.GetOfflineSyncState("vendor-a")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if out.IsRunning {
		t.Error("running flag should clear after the pass")
	}
}

func TestOfflineSyncStateUnknownSite(t *testing.T) {
	store := newTestStore(t)

	out, err := store.GetOfflineSyncState("never-ran")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.SiteID != "never-ran" || out.Enabled || out.IsRunning {
		t.Errorf("unknown site should yield a zero state, got %+v", out)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)

	in := models.CaptureSnapshot{
		CapturedAt: time.Now().Truncate(time.Second),
		SiteID:     "vendor-a",
		Total:      2,
		Orders:     []byte(`[{"order_no":"A1"},{"order_no":"A2"}]`),
	}
	if err := store.SetConfig(CaptureKey("vendor-a"), in); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var out models.CaptureSnapshot
	found, err := store.GetConfig(CaptureKey("vendor-a"), &out)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("snapshot not found after set")
	}
	if out.Total != 2 || out.SiteID != "vendor-a" {
		t.Errorf("snapshot = %+v", out)
	}

	if found, _ := store.GetConfig(CaptureKey("vendor-b"), &out); found {
		t.Error("missing key reported as found")
	}
}

func TestLastRunTime(t *testing.T) {
	store := newTestStore(t)

	zero, err := store.GetLastRunTime("vendor-a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("never-run site returned %v", zero)
	}

	stamp := time.Now().Truncate(time.Second)
	if err := store.SetLastRunTime("vendor-a", stamp); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.GetLastRunTime("vendor-a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.Equal(stamp) {
		t.Fatalf("last run = %v, want %v", got, stamp)
	}
}
