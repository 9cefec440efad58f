package logging

import (
	"fmt"
	"testing"
	"time"

	"rentsync/models"
)

func TestRingSinkEvictsOldest(t *testing.T) {
	ring := NewRingSink(5)
	for i := 0; i < 8; i++ {
		ring.Append(models.SyncLogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	tail := ring.Tail()
	if len(tail) != 5 {
		t.Fatalf("retained %d entries, want 5", len(tail))
	}
	if tail[0].Message != "entry 3" || tail[4].Message != "entry 7" {
		t.Fatalf("wrong window: first=%q last=%q", tail[0].Message, tail[4].Message)
	}
}

func TestDailyFileSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := NewDailyFileSink(dir, "site-1")

	day := time.Date(2024, 5, 18, 10, 30, 0, 0, time.UTC)
	sink.Append(models.SyncLogEntry{Timestamp: day, Message: "run started"})
	sink.Append(models.SyncLogEntry{Timestamp: day.Add(time.Minute), Message: "synced A1", OrderNos: []string{"A1"}})

	entries, err := ReadDay(dir, "site-1", day)
	if err != nil {
		t.Fatalf("ReadDay failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("read %d entries, want 2", len(entries))
	}
	if entries[0].Message != "run started" {
		t.Errorf("first entry = %q", entries[0].Message)
	}
	if len(entries[1].OrderNos) != 1 || entries[1].OrderNos[0] != "A1" {
		t.Errorf("order nos = %v", entries[1].OrderNos)
	}
}

func TestDailyFileSinkSplitsByDay(t *testing.T) {
	dir := t.TempDir()
	sink := NewDailyFileSink(dir, "site-1")

	day1 := time.Date(2024, 5, 18, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	sink.Append(models.SyncLogEntry{Timestamp: day1, Message: "before midnight"})
	sink.Append(models.SyncLogEntry{Timestamp: day2, Message: "after midnight"})

	first, err := ReadDay(dir, "site-1", day1)
	if err != nil || len(first) != 1 {
		t.Fatalf("day 1: entries=%d err=%v", len(first), err)
	}
	second, err := ReadDay(dir, "site-1", day2)
	if err != nil || len(second) != 1 {
		t.Fatalf("day 2: entries=%d err=%v", len(second), err)
	}
}

func TestReadDayMissingFile(t *testing.T) {
	entries, err := ReadDay(t.TempDir(), "site-1", time.Now())
	if err != nil {
		t.Fatalf("missing day file should not error: %v", err)
	}
	if entries != nil {
		t.Fatalf("entries = %v, want nil", entries)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := NewRingSink(10)
	b := NewRingSink(10)
	multi := MultiSink{a, b}

	multi.Append(models.SyncLogEntry{Message: "hello"})

	if len(a.Tail()) != 1 || len(b.Tail()) != 1 {
		t.Fatal("entry did not reach every sink")
	}
}
