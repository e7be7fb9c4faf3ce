package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAccessorsWorkBeforeSetup(t *testing.T) {
	mu.Lock()
	prev := GlobalLogger
	GlobalLogger = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		GlobalLogger = prev
		mu.Unlock()
	})

	if ApplicationLogger() == nil || ErrorLoggerRaw() == nil {
		t.Fatalf("expected fallback loggers")
	}
}

func TestSetupLoggerWritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		mu.Lock()
		l := GlobalLogger
		GlobalLogger = nil
		mu.Unlock()
		_ = l.Sync()
	})

	if err := SetupLogger(Options{Dir: dir, Level: "debug", MaxSizeMB: 1, Quiet: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	DatabaseLogger().Info("kv write", "key", "guilds")
	if err := GlobalLogger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "database.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "key=guilds") {
		t.Fatalf("expected structured field in log, got %q", string(data))
	}
}

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	if err := SetupLogger(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
