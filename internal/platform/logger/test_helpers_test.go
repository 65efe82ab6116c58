package logger_test

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/bizscan/bizscan-api/internal/platform/logger"
)

func TestTestLogBuffer(t *testing.T) {
	buf := &logger.TestLogBuffer{}

	data := []byte("test log message")
	n, err := buf.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write returned %d, want %d", n, len(data))
	}

	if got := buf.String(); got != "test log message" {
		t.Errorf("String returned %q, want %q", got, "test log message")
	}
	if got := string(buf.Bytes()); got != "test log message" {
		t.Errorf("Bytes returned %q, want %q", got, "test log message")
	}

	buf.Reset()
	if got := buf.String(); got != "" {
		t.Errorf("after Reset, String returned %q, want empty", got)
	}
}

func TestTestLogBufferGetLogEntries(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	log := slog.New(slog.NewJSONHandler(buf, nil))

	log.Info("first entry", "key", "value1")
	log.Warn("second entry", "key", "value2")

	entries, err := buf.GetLogEntries()
	if err != nil {
		t.Fatalf("GetLogEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["msg"] != "first entry" {
		t.Errorf("first entry msg = %v, want %q", entries[0]["msg"], "first entry")
	}
	if entries[1]["key"] != "value2" {
		t.Errorf("second entry key = %v, want %q", entries[1]["key"], "value2")
	}
}

func TestTestLogBufferGetLogEntriesInvalidJSON(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	if _, err := buf.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := buf.GetLogEntries(); err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestSetupTestLogger(t *testing.T) {
	// Mutates the process default logger, so no t.Parallel.
	logBuf, log, cleanup := logger.SetupTestLogger(t, nil)
	defer cleanup()

	log.Debug("debug message")
	slog.Info("default logger message")

	logs := logBuf.String()
	if !strings.Contains(logs, "debug message") {
		t.Errorf("expected debug-level capture, got:\n%s", logs)
	}
	if !strings.Contains(logs, "default logger message") {
		t.Errorf("expected the default logger to be swapped, got:\n%s", logs)
	}
}

func TestSetupTestLoggerRestoresDefault(t *testing.T) {
	original := slog.Default()

	_, _, cleanup := logger.SetupTestLogger(t, nil)
	cleanup()

	if slog.Default() != original {
		t.Error("cleanup did not restore the original default logger")
	}
}

func TestGetTestLogger(t *testing.T) {
	log, logBuf := logger.GetTestLogger(t)
	log.Debug("captured without touching default")

	if !strings.Contains(logBuf.String(), "captured without touching default") {
		t.Errorf("expected message in buffer, got:\n%s", logBuf.String())
	}
}

func TestCaptureLogs(t *testing.T) {
	logs := logger.CaptureLogs(t, func(log *slog.Logger) {
		log.Info("inside capture", "count", 3)
	})

	if !strings.Contains(logs, "inside capture") {
		t.Errorf("expected captured message, got:\n%s", logs)
	}
	if !strings.Contains(logs, `"count":3`) {
		t.Errorf("expected structured attribute, got:\n%s", logs)
	}
}

func TestAssertLogContains(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	log := slog.New(slog.NewJSONHandler(buf, nil))
	log.Info("needle in the logs")

	logger.AssertLogContains(t, buf, "needle in the logs")
}

func TestAssertLogField(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	log := slog.New(slog.NewJSONHandler(buf, nil))
	log.Info("event", "component", "cache")

	logger.AssertLogField(t, buf, "component", "cache")
	logger.AssertLogField(t, buf, "msg", "event")
}

func TestNewLogCaptureContext(t *testing.T) {
	capture := logger.NewLogCaptureContext(t)

	logger.FromContext(capture.Context).Info("logged through context")

	if !strings.Contains(capture.Buffer.String(), "logged through context") {
		t.Errorf("expected the context logger to write into the buffer, got:\n%s", capture.Buffer.String())
	}
}
