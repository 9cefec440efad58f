package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"rentsync/models"
)

// SQLiteStore holds operational data: the KV app config (capture
// snapshots, keyword overrides), run history and per-site sync state.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value JSON,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		state TEXT,
		orders_found INTEGER DEFAULT 0,
		upserted INTEGER DEFAULT 0,
		purged INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_state TEXT,
		total_runs INTEGER,
		success_rate REAL,
		avg_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS offline_sync_state (
		site_id TEXT PRIMARY KEY,
		enabled INTEGER DEFAULT 0,
		is_running INTEGER DEFAULT 0,
		last_run_at DATETIME,
		next_run_at DATETIME,
		success_count INTEGER DEFAULT 0,
		failure_count INTEGER DEFAULT 0,
		last_error TEXT,
		last_synced_order_nos JSON
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON sync_runs(site_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_state ON sync_runs(state, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// KV app config
// =============================================================================

// CaptureKey is the KV key under which a site's last extraction
// snapshot is stored.
func CaptureKey(siteID string) string {
	return "capture:" + siteID
}

func (s *SQLiteStore) GetConfig(key string, out interface{}) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("decode config %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) SetConfig(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO app_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now())
	return err
}

// =============================================================================
// Run history
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.SyncRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO sync_runs (run_id, site_id, started_at, state, orders_found, upserted, purged, errors_count, message)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, '')`,
		run.RunID, run.SiteID, run.StartedAt, run.State)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.SyncRun) error {
	_, err := s.db.Exec(`
		UPDATE sync_runs SET finished_at = ?, state = ?, orders_found = ?,
			upserted = ?, purged = ?, errors_count = ?, message = ?
		WHERE id = ?`,
		run.FinishedAt, run.State, run.OrdersFound,
		run.Upserted, run.Purged, run.ErrorsCount, run.Message, run.ID)
	return err
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_state, total_runs, success_rate, avg_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM sync_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT state FROM sync_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM sync_runs WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN state = 'success' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM sync_runs WHERE site_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM sync_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_state = excluded.last_run_state,
			total_runs = excluded.total_runs,
			success_rate = excluded.success_rate,
			avg_duration_sec = excluded.avg_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

// GetLastRunTime returns the recorded cadence clock for a site.
// Manual triggers stamp this too, so a manual run resets the cadence.
func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	var lastRun sql.NullTime
	err := s.db.QueryRow(`
		SELECT last_run_at FROM site_stats WHERE site_id = ?`, siteID).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return lastRun.Time, nil
}

func (s *SQLiteStore) SetLastRunTime(siteID string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at)
		VALUES (?, ?)
		ON CONFLICT(site_id) DO UPDATE SET last_run_at = excluded.last_run_at`,
		siteID, t)
	return err
}

// =============================================================================
// Offline sync state
// =============================================================================

func (s *SQLiteStore) GetOfflineSyncState(siteID string) (*models.OfflineSyncStatus, error) {
	row := s.db.QueryRow(`
		SELECT enabled, is_running, last_run_at, next_run_at, success_count, failure_count, last_error, last_synced_order_nos
		FROM offline_sync_state WHERE site_id = ?`, siteID)

	status := &models.OfflineSyncStatus{SiteID: siteID}
	var lastRun, nextRun sql.NullTime
	var lastError, orderNos sql.NullString
	err := row.Scan(&status.Enabled, &status.IsRunning, &lastRun, &nextRun, &status.SuccessCount, &status.FailureCount, &lastError, &orderNos)
	if err == sql.ErrNoRows {
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		status.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		status.NextRunAt = &nextRun.Time
	}
	status.LastError = lastError.String
	if orderNos.Valid && orderNos.String != "" {
		json.Unmarshal([]byte(orderNos.String), &status.LastSyncedOrderNos)
	}
	return status, nil
}

func (s *SQLiteStore) SaveOfflineSyncState(status *models.OfflineSyncStatus) error {
	orderNos, _ := json.Marshal(status.LastSyncedOrderNos)
	_, err := s.db.Exec(`
		INSERT INTO offline_sync_state (site_id, enabled, is_running, last_run_at, next_run_at, success_count, failure_count, last_error, last_synced_order_nos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			enabled = excluded.enabled,
			is_running = excluded.is_running,
			last_run_at = excluded.last_run_at,
			next_run_at = excluded.next_run_at,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			last_error = excluded.last_error,
			last_synced_order_nos = excluded.last_synced_order_nos`,
		status.SiteID, status.Enabled, status.IsRunning, status.LastRunAt, status.NextRunAt,
		status.SuccessCount, status.FailureCount, status.LastError, string(orderNos))
	return err
}

// ResetAllData clears all operational tables
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"sync_runs",
		"site_stats",
		"offline_sync_state",
		"app_config",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
