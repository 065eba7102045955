package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunLoggerWritesSectionsVerbatim(t *testing.T) {
	t.Chdir(t.TempDir())

	logger, err := StartRunLogging("test-run")
	if err != nil {
		t.Fatalf("StartRunLogging: %v", err)
	}

	// Percent signs in logged content must survive untouched.
	logger.LogSection("MODEL REQUEST - discount 50% off")
	logger.Log("attempt %d of %d", 1, 3)
	logger.Close()

	entries, err := filepath.Glob(filepath.Join("pipeline_logs", "run_test-run_*.log"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one run log, got %v (err %v)", entries, err)
	}
	data, err := os.ReadFile(entries[0])
	if err != nil {
		t.Fatalf("reading run log: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "discount 50% off") {
		t.Errorf("section title mangled:\n%s", content)
	}
	if strings.Contains(content, "%!") {
		t.Errorf("formatting artifact leaked into log:\n%s", content)
	}
	if !strings.Contains(content, "attempt 1 of 3") {
		t.Errorf("formatted message missing:\n%s", content)
	}
}

func TestNilRunLoggerIsSafe(t *testing.T) {
	var logger *RunLogger
	logger.Log("ignored")
	logger.LogSection("ignored")
	logger.LogError("nowhere", nil)
	logger.Close()
}
