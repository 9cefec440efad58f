package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// daemonLogLimit caps the daemon log file. One rotated generation is
// kept alongside it; two files is all the history the daemon keeps,
// the durable record lives in the per-site day logs.
const daemonLogLimit = 4 * 1024 * 1024

// DaemonLog mirrors everything written through the stdlib logger into
// a size-capped file, with stdout as the second copy for the process
// supervisor to capture.
type DaemonLog struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	written int64
	limit   int64
}

// Setup opens (or continues) the daemon log at path and points the
// stdlib logger at stdout plus the file.
func Setup(path string) (*DaemonLog, error) {
	d := &DaemonLog{path: path, limit: daemonLogLimit}
	if err := d.open(); err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, d))
	return d, nil
}

func (d *DaemonLog) open() error {
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	d.file = f
	d.written = 0
	if info, err := f.Stat(); err == nil {
		d.written = info.Size()
	}
	return nil
}

// Write rotates before the cap would be exceeded, so the current file
// never grows past the limit.
func (d *DaemonLog) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.written+int64(len(p)) > d.limit {
		d.rotate()
	}

	n, err := d.file.Write(p)
	d.written += int64(n)
	return n, err
}

// rotate requires d.mu held. The previous generation replaces any
// older one.
func (d *DaemonLog) rotate() {
	d.file.Close()
	os.Rename(d.path, d.path+".old")

	if err := d.open(); err != nil {
		// Logging must never take the daemon down; drop output until
		// the next successful rotation.
		d.file, _ = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		d.written = 0
	}
}

func (d *DaemonLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}
