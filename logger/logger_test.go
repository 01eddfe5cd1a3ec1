package logger

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("debug", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureReportLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("report", "json", "stdout", 0); err != nil {
		t.Fatalf("report level must be accepted: %v", err)
	}
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("report level should log at info, got %v", log.Logger.GetLevel())
	}
}

func TestReportLevelFromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "report")

	log := Logger()
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("report level from LOG_LEVEL should log at info, got %v", log.Logger.GetLevel())
	}
}

func TestLogMetric(t *testing.T) {
	log := Logger()
	log.SetOutput(io.Discard)
	hook := logrustest.NewLocal(log.Logger)

	log.LogMetric("archive_writer", "segment_bytes", 2048, "gauge", Fields{"symbol": "VIC"})

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Data["metric"] != "segment_bytes" || e.Data["metric_type"] != "gauge" {
		t.Errorf("metric fields missing: %v", e.Data)
	}
	if e.Data["value"] != 2048 {
		t.Errorf("metric value not recorded: %v", e.Data["value"])
	}
	if e.Data["component"] != "archive_writer" || e.Data["symbol"] != "VIC" {
		t.Errorf("metric dimensions missing: %v", e.Data)
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestTickCounters(t *testing.T) {
	before := TicksAccepted()
	IncrementTickAccepted()
	if TicksAccepted() != before+1 {
		t.Fatalf("accepted counter not incremented")
	}

	beforeDropped := TicksDropped()
	IncrementTickDropped()
	if TicksDropped() != beforeDropped+1 {
		t.Fatalf("dropped counter not incremented")
	}
}
