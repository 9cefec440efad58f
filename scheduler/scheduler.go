package scheduler

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"rentsync/config"
	"rentsync/logging"
	"rentsync/scraper"
	"rentsync/storage"
)

const tickInterval = 60 * time.Second

// Scheduler decides when sites sync. The default mode is a coarse
// ticker comparing elapsed time against the configured interval per
// site; a cron expression switches the whole cadence to cron. Manual
// triggers run immediately and stamp the cadence clock, so a manual
// run pushes the next scheduled one out by a full interval.
type Scheduler struct {
	cfg      *config.Config
	orch     *scraper.Orchestrator
	ops      *storage.SQLiteStore
	archiver *logging.Archiver

	triggerCh chan string
}

func New(cfg *config.Config, orch *scraper.Orchestrator, ops *storage.SQLiteStore, archiver *logging.Archiver) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		orch:      orch,
		ops:       ops,
		archiver:  archiver,
		triggerCh: make(chan string, 4),
	}
}

// TriggerSite queues an immediate sync for one site. Non-blocking; a
// full queue drops the request since a sync is already imminent.
func (s *Scheduler) TriggerSite(siteID string) {
	select {
	case s.triggerCh <- siteID:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	c := cron.New()

	useTicker := true
	if expr := s.cfg.Scheduler.Cron; expr != "" {
		if _, err := c.AddFunc(expr, func() { s.orch.RunAll(ctx) }); err != nil {
			log.Printf("Invalid SYNC_CRON %q, falling back to interval mode: %v", expr, err)
		} else {
			log.Printf("Scheduler in cron mode: %s", expr)
			useTicker = false
		}
	}

	if s.archiver != nil {
		c.AddFunc("0 3 * * *", func() {
			if err := s.archiver.ArchiveClosedDays(ctx); err != nil {
				log.Printf("Log archive pass failed: %v", err)
			}
		})
	}

	c.Start()
	defer c.Stop()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Printf("Scheduler started, interval %s", s.cfg.Scheduler.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case siteID := <-s.triggerCh:
			if err := s.orch.RunSite(ctx, siteID); err != nil {
				log.Printf("Triggered sync for %s failed: %v", siteID, err)
			}
		case <-ticker.C:
			if useTicker {
				s.tick(ctx)
			}
		}
	}
}

// tick syncs every enabled site whose interval has elapsed, in stable
// order with the inter-site delay between runs.
func (s *Scheduler) tick(ctx context.Context) {
	due := s.dueSites()
	for i, siteID := range due {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			time.Sleep(s.cfg.Scheduler.InterSiteDelay)
		}
		if err := s.orch.RunSite(ctx, siteID); err != nil {
			log.Printf("Scheduled sync for %s failed: %v", siteID, err)
		}
	}
}

func (s *Scheduler) dueSites() []string {
	now := time.Now()
	var due []string
	for id, site := range s.cfg.Sites {
		if !site.Enabled {
			continue
		}
		lastRun, err := s.ops.GetLastRunTime(id)
		if err != nil {
			log.Printf("Last-run lookup for %s failed: %v", id, err)
			continue
		}
		if now.Sub(lastRun) >= s.cfg.Scheduler.Interval {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due
}
