package scheduler

import (
	"context"
	"log"
	"time"

	"rentsync/config"
	"rentsync/services"
	"rentsync/storage"
)

// OfflineWorker runs one site's offline-order reconciliation on its
// own cadence, independent of the scrape schedule. It only reads what
// scraping already persisted, so it never touches the browser.
type OfflineWorker struct {
	site *config.SiteConfig
	sync *services.OfflineSync
	ops  *storage.SQLiteStore

	triggerCh chan struct{}
}

func NewOfflineWorker(site *config.SiteConfig, sync *services.OfflineSync, ops *storage.SQLiteStore) *OfflineWorker {
	return &OfflineWorker{
		site:      site,
		sync:      sync,
		ops:       ops,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate pass. Non-blocking; a pending trigger
// already covers it.
func (w *OfflineWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (w *OfflineWorker) Run(ctx context.Context) {
	if !w.site.OfflineSync.Enabled {
		return
	}

	log.Printf("Offline sync worker for %s started, interval %s", w.site.ID, w.site.OfflineSync.Interval)

	ticker := time.NewTicker(w.site.OfflineSync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass(ctx)
		case <-w.triggerCh:
			w.pass(ctx)
		}
	}
}

func (w *OfflineWorker) pass(ctx context.Context) {
	status, err := w.ops.GetOfflineSyncState(w.site.ID)
	if err != nil {
		log.Printf("Offline sync state load for %s failed: %v", w.site.ID, err)
		return
	}
	status.Enabled = true
	status.IsRunning = true
	// Persist the running flag so status polls see the pass while it
	// is still going.
	if err := w.ops.SaveOfflineSyncState(status); err != nil {
		log.Printf("Offline sync state save for %s failed: %v", w.site.ID, err)
	}

	now := time.Now()
	synced, err := w.sync.Run(ctx, w.site.ID)

	status.IsRunning = false
	status.LastRunAt = &now
	next := now.Add(w.site.OfflineSync.Interval)
	status.NextRunAt = &next

	if err != nil {
		status.FailureCount++
		status.LastError = err.Error()
		log.Printf("Offline sync pass for %s failed: %v", w.site.ID, err)
	} else {
		status.SuccessCount++
		status.LastError = ""
		if len(synced) > 0 {
			status.LastSyncedOrderNos = synced
		}
	}

	if err := w.ops.SaveOfflineSyncState(status); err != nil {
		log.Printf("Offline sync state save for %s failed: %v", w.site.ID, err)
	}
}
