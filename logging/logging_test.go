package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"
)

func TestDaemonLogRotatesBeforeExceedingLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	d, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer d.Close()
	defer log.SetOutput(os.Stderr)

	d.limit = 64
	line := make([]byte, 32)
	for i := range line {
		line[i] = 'x'
	}

	for i := 0; i < 4; i++ {
		if _, err := d.Write(line); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".old"); err != nil {
		t.Fatalf("expected a rotated generation: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() > 64 {
		t.Errorf("current log is %d bytes, cap is 64", info.Size())
	}
}

func TestDaemonLogContinuesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte("earlier run\n"), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer d.Close()
	defer log.SetOutput(os.Stderr)

	if d.written != int64(len("earlier run\n")) {
		t.Fatalf("written = %d, want size of the existing file", d.written)
	}
}
