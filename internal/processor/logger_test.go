package processor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLoggerWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "processor.log")

	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	logger.Log("tick %d processed %d", 3, 1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "tick 3 processed 1") {
		t.Errorf("log missing message, got:\n%s", data)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	logger := NopLogger()
	logger.Log("ignored")
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	var nilLogger *DebugLogger
	nilLogger.Log("also ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}
