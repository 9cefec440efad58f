package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"rentsync/config"
	"rentsync/httputil"
	"rentsync/logging"
	"rentsync/models"
	"rentsync/services"
	"rentsync/storage"
	"rentsync/tracker"
)

// Orchestrator drives one full sync run per site: login, risk-guarded
// page traversal, parsing, logistics enrichment and the canonical
// upsert, with the run recorded in the operational store throughout.
type Orchestrator struct {
	cfg     *config.Config
	session *SessionManager
	tracker *tracker.Tracker
	upsert  *services.UpsertEngine
	ops     *storage.SQLiteStore
	clients *httputil.Clients
}

func NewOrchestrator(cfg *config.Config, session *SessionManager, t *tracker.Tracker, upsert *services.UpsertEngine, ops *storage.SQLiteStore, clients *httputil.Clients) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		session: session,
		tracker: t,
		upsert:  upsert,
		ops:     ops,
		clients: clients,
	}
}

// trackerSink routes sync log entries into the tracker's live ring.
type trackerSink struct {
	t *tracker.Tracker
}

func (s trackerSink) Append(entry models.SyncLogEntry) {
	s.t.Log(entry.Message)
}

// RunSite executes one sync run. The tracker's Begin doubles as the
// process-wide run-lock, so concurrent triggers fail fast instead of
// queueing behind a browser that only fits one run anyway.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) (err error) {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site %q", siteID)
	}
	if !site.Enabled {
		return fmt.Errorf("site %q is disabled", siteID)
	}

	runID := uuid.NewString()
	if err := o.tracker.Begin(siteID, runID); err != nil {
		return err
	}

	sink := logging.MultiSink{
		logging.NewDailyFileSink(o.cfg.LogsDir, siteID),
		trackerSink{o.tracker},
	}

	syncRun := &models.SyncRun{
		RunID:     runID,
		SiteID:    siteID,
		StartedAt: time.Now(),
		State:     models.RunStateRunning,
	}
	if id, err := o.ops.CreateRun(syncRun); err != nil {
		log.Printf("Run record creation failed: %v", err)
	} else {
		syncRun.ID = id
	}

	var result *models.RunResult

	// The finish must run no matter how the run ends. Begin took the
	// run-lock above; a panic anywhere in the scrape path would
	// otherwise strand it and block every later run.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync run panicked: %v", r)
		}
		o.finishRun(syncRun, result, err, sink)
	}()

	result, err = o.runSite(ctx, site, sink)
	return err
}

// finishRun stamps the run record, releases the tracker lock and
// refreshes the site's stats and cadence clock.
func (o *Orchestrator) finishRun(syncRun *models.SyncRun, result *models.RunResult, runErr error, sink logging.Sink) {
	now := time.Now()
	syncRun.FinishedAt = &now
	if runErr != nil {
		syncRun.State = models.RunStateError
		syncRun.Message = runErr.Error()
		o.tracker.Fail(runErr.Error())
		sink.Append(models.SyncLogEntry{Message: fmt.Sprintf("run failed: %v", runErr)})
	} else {
		syncRun.State = models.RunStateSuccess
		syncRun.OrdersFound = result.Total
		syncRun.Upserted = result.Upserted
		syncRun.Purged = result.Purged
		syncRun.ErrorsCount = result.Errors
		o.tracker.Succeed(result)
		sink.Append(models.SyncLogEntry{Message: fmt.Sprintf(
			"run complete: %d found, %d upserted, %d skipped done, %d purged, %d errors",
			result.Total, result.Upserted, result.SkippedDone, result.Purged, result.Errors)})
	}

	if err := o.ops.UpdateRun(syncRun); err != nil {
		log.Printf("Run record update failed: %v", err)
	}
	if err := o.ops.UpdateSiteStats(syncRun.SiteID); err != nil {
		log.Printf("Site stats update failed: %v", err)
	}
	if err := o.ops.SetLastRunTime(syncRun.SiteID, syncRun.StartedAt); err != nil {
		log.Printf("Last-run stamp failed: %v", err)
	}
}

func (o *Orchestrator) runSite(ctx context.Context, site *config.SiteConfig, sink logging.Sink) (*models.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.tracker.SetMessage("logging in")
	if err := o.session.EnsureLoggedIn(site); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	page, err := o.session.Page()
	if err != nil {
		return nil, err
	}

	risk := NewRiskDetector(site, o.clients, o.cfg.Webhook, o.tracker)
	if err := risk.Check(page); err != nil {
		return nil, err
	}

	o.session.simulateHumanBehavior(page)

	extractor := NewListExtractor(site, page, risk)
	if err := extractor.ResolveContainer(); err != nil {
		return nil, err
	}
	if pending := extractor.PendingCount(); pending > 0 {
		sink.Append(models.SyncLogEntry{Message: fmt.Sprintf("portal reports %d pending orders", pending)})
	}

	logistics := NewLogisticsExtractor(site)

	var orders []models.ScrapedOrder
	o.tracker.SetMessage("extracting orders")

	visit := func(pageNum int, rows []RawRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		parsed := 0
		for _, row := range rows {
			order, err := ParseRow(row)
			if err != nil {
				log.Printf("Page %d: %v", pageNum, err)
				continue
			}
			order.SiteID = site.ID
			logistics.Enrich(page, extractor.RowLocator(row.Index), order)
			orders = append(orders, *order)
			parsed++
		}
		sink.Append(models.SyncLogEntry{Message: fmt.Sprintf("page %d: %d of %d rows parsed", pageNum, parsed, len(rows))})
		o.session.humanDelay(800, 2000)
		return nil
	}

	pages, err := CollectPages(extractor, site.MaxPages, visit)
	if err != nil {
		sink.Append(models.SyncLogEntry{Message: fmt.Sprintf("pagination stopped early: %v", err)})
	}
	sink.Append(models.SyncLogEntry{Message: fmt.Sprintf("extracted %d orders across %d pages", len(orders), pages)})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.tracker.SetMessage("reconciling into store")
	result, err := o.upsert.Run(ctx, site.ID, orders, site.MerchantAllowList)
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	o.saveSnapshot(site.ID, orders)
	return result, nil
}

// saveSnapshot persists the raw extraction result to the KV store so
// the UI can show exactly what the last run saw.
func (o *Orchestrator) saveSnapshot(siteID string, orders []models.ScrapedOrder) {
	raw, err := json.Marshal(orders)
	if err != nil {
		return
	}
	snapshot := models.CaptureSnapshot{
		CapturedAt: time.Now(),
		SiteID:     siteID,
		Total:      len(orders),
		Orders:     raw,
	}
	if err := o.ops.SetConfig(storage.CaptureKey(siteID), snapshot); err != nil {
		log.Printf("Snapshot save failed for %s: %v", siteID, err)
	}
}

// RunAll syncs every enabled site in stable order, pausing between
// sites so the portal never sees back-to-back sessions.
func (o *Orchestrator) RunAll(ctx context.Context) {
	ids := make([]string, 0, len(o.cfg.Sites))
	for id, site := range o.cfg.Sites {
		if site.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for i, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			time.Sleep(o.cfg.Scheduler.InterSiteDelay)
		}
		if err := o.RunSite(ctx, id); err != nil {
			log.Printf("Sync for %s failed: %v", id, err)
		}
	}
}
