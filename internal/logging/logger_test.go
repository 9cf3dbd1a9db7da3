package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"packmule/internal/logging"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "packmule.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", LogFile: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", "artifact", "Thing.pkg")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Thing.pkg") {
		t.Fatalf("expected log record in file, got %q", string(data))
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("should not panic")
}
