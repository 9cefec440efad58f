package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"rentsync/config"
	"rentsync/logging"
	"rentsync/models"
	"rentsync/scheduler"
	"rentsync/storage"
	"rentsync/tracker"
)

// Server is the control-plane API: trigger a sync, poll run state,
// read back the durable daily logs.
type Server struct {
	cfg     *config.Config
	tracker *tracker.Tracker
	sched   *scheduler.Scheduler
	ops     *storage.SQLiteStore
	offline map[string]*scheduler.OfflineWorker
	rings   map[string]*logging.RingSink

	engine *gin.Engine
}

func New(cfg *config.Config, t *tracker.Tracker, sched *scheduler.Scheduler, ops *storage.SQLiteStore, offline map[string]*scheduler.OfflineWorker, rings map[string]*logging.RingSink) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		tracker: t,
		sched:   sched,
		ops:     ops,
		offline: offline,
		rings:   rings,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api/sync")
	api.GET("/status", s.handleStatus)
	api.POST("/sites/:id/trigger", s.handleTrigger)
	api.POST("/sites/:id/offline/trigger", s.handleOfflineTrigger)
	api.GET("/sites/:id/offline/logs", s.handleOfflineLogs)
	api.GET("/sites/:id/logs", s.handleLogs)
	api.GET("/sites/:id/snapshot", s.handleSnapshot)
	api.POST("/reset", s.handleReset)
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleStatus(c *gin.Context) {
	snapshot := s.tracker.Snapshot()

	offline := make(map[string]interface{}, len(s.cfg.Sites))
	for id := range s.cfg.Sites {
		state, err := s.ops.GetOfflineSyncState(id)
		if err != nil {
			continue
		}
		offline[id] = state
	}

	c.JSON(http.StatusOK, gin.H{
		"run":          snapshot,
		"offline_sync": offline,
	})
}

// handleTrigger starts a sync for one site unless a run already holds
// the lock. The actual run happens on the scheduler goroutine; the
// response is the state at accept time, polled via /status afterwards.
func (s *Server) handleTrigger(c *gin.Context) {
	siteID := c.Param("id")
	site, ok := s.cfg.Sites[siteID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
		return
	}
	if !site.Enabled {
		c.JSON(http.StatusConflict, gin.H{"error": "site is disabled"})
		return
	}

	if s.tracker.Active() {
		c.JSON(http.StatusConflict, gin.H{
			"error": "a sync run is already active",
			"run":   s.tracker.Snapshot(),
		})
		return
	}

	s.sched.TriggerSite(siteID)
	c.JSON(http.StatusAccepted, gin.H{
		"triggered": siteID,
		"run":       s.tracker.Snapshot(),
	})
}

// handleOfflineLogs returns the in-memory tail of a site's offline
// reconciliation log, newest last.
func (s *Server) handleOfflineLogs(c *gin.Context) {
	siteID := c.Param("id")
	ring, ok := s.rings[siteID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no offline sync worker for site"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"site_id": siteID,
		"entries": ring.Tail(),
	})
}

func (s *Server) handleOfflineTrigger(c *gin.Context) {
	siteID := c.Param("id")
	worker, ok := s.offline[siteID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no offline sync worker for site"})
		return
	}
	worker.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"triggered": siteID})
}

// handleSnapshot returns the raw extraction result of a site's last
// run, exactly as it was parsed.
func (s *Server) handleSnapshot(c *gin.Context) {
	siteID := c.Param("id")
	if _, ok := s.cfg.Sites[siteID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
		return
	}

	var snapshot models.CaptureSnapshot
	found, err := s.ops.GetConfig(storage.CaptureKey(siteID), &snapshot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no capture recorded yet"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleReset clears all operational data (run history, stats, KV
// snapshots, offline sync state). The canonical order store is never
// touched. Refused while a run is active.
func (s *Server) handleReset(c *gin.Context) {
	if s.tracker.Active() {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync run is active"})
		return
	}
	if err := s.ops.ResetAllData(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// handleLogs returns one site's durable log entries for a calendar
// date, defaulting to today. A day with no file is an empty list.
func (s *Server) handleLogs(c *gin.Context) {
	siteID := c.Param("id")
	if _, ok := s.cfg.Sites[siteID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
		return
	}

	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	entries, err := logging.ReadDay(s.cfg.LogsDir, siteID, day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []models.SyncLogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"site_id": siteID,
		"date":    day.Format("2006-01-02"),
		"entries": entries,
	})
}
