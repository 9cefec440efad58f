package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rentsync/models"
)

// Sink receives sync log entries. The engine writes every entry to two
// sinks: a capped in-memory ring for live polling and a per-site
// per-day JSON-lines file as the durable record.
type Sink interface {
	Append(entry models.SyncLogEntry)
}

// RingSink keeps the newest entries up to a fixed capacity, evicting
// the oldest first.
type RingSink struct {
	mu      sync.Mutex
	max     int
	entries []models.SyncLogEntry
}

func NewRingSink(max int) *RingSink {
	if max <= 0 {
		max = 500
	}
	return &RingSink{max: max}
}

func (r *RingSink) Append(entry models.SyncLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

// Tail returns a copy of the retained entries, oldest first.
func (r *RingSink) Tail() []models.SyncLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.SyncLogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// DailyFileSink appends JSON lines to logs/<site>/<YYYY-MM-DD>.log.
type DailyFileSink struct {
	mu     sync.Mutex
	dir    string
	siteID string
}

func NewDailyFileSink(dir, siteID string) *DailyFileSink {
	return &DailyFileSink{dir: dir, siteID: siteID}
}

func (s *DailyFileSink) Append(entry models.SyncLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	path := DayFilePath(s.dir, s.siteID, entry.Timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f.Write(append(line, '\n'))
}

// MultiSink fans one entry out to several sinks.
type MultiSink []Sink

func (m MultiSink) Append(entry models.SyncLogEntry) {
	for _, s := range m {
		s.Append(entry)
	}
}

// DayFilePath returns the durable log file path for a site and day.
func DayFilePath(dir, siteID string, day time.Time) string {
	return filepath.Join(dir, siteID, day.Format("2006-01-02")+".log")
}

// ReadDay loads the durable entries for a site and calendar date.
// A missing file is an empty day, not an error.
func ReadDay(dir, siteID string, day time.Time) ([]models.SyncLogEntry, error) {
	f, err := os.Open(DayFilePath(dir, siteID, day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open day log: %w", err)
	}
	defer f.Close()

	var entries []models.SyncLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry models.SyncLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
