package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader pushes a closed log file to remote storage.
type Uploader interface {
	UploadFile(ctx context.Context, key, path, contentType string) error
}

// Archiver uploads previous days' site log files. Today's file is
// still being appended to and is never archived.
type Archiver struct {
	dir      string
	uploader Uploader
}

func NewArchiver(dir string, uploader Uploader) *Archiver {
	return &Archiver{dir: dir, uploader: uploader}
}

// ArchiveClosedDays uploads every day file dated before today.
// Uploads are idempotent (same key overwrites), so re-running after a
// partial failure is safe.
func (a *Archiver) ArchiveClosedDays(ctx context.Context) error {
	today := time.Now().Format("2006-01-02")

	sites, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read logs dir: %w", err)
	}

	var firstErr error
	for _, site := range sites {
		if !site.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(a.dir, site.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			name := file.Name()
			if !strings.HasSuffix(name, ".log") {
				continue
			}
			day := strings.TrimSuffix(name, ".log")
			if day >= today {
				continue
			}

			key := fmt.Sprintf("sync-logs/%s/%s", site.Name(), name)
			path := filepath.Join(a.dir, site.Name(), name)
			if err := a.uploader.UploadFile(ctx, key, path, "application/x-ndjson"); err != nil {
				log.Printf("Archive upload failed for %s: %v", path, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
	}
	return firstErr
}
