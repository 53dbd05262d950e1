package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(buf, nil))}
}

func TestNew_DevelopmentEnablesDebug(t *testing.T) {
	dev := New("development")
	if !dev.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("development logger must accept debug records")
	}

	prod := New("production")
	if prod.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("production logger must drop debug records")
	}
}

func TestJobMetrics_EmitsParseableRecord(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.JobMetrics("progress_warning", 12, 3, 150*time.Millisecond)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if record["msg"] != "job_metrics" || record["job"] != "progress_warning" {
		t.Errorf("record = %v, want job_metrics for progress_warning", record)
	}
	if record["processed"] != float64(12) || record["actions"] != float64(3) {
		t.Errorf("counters = %v/%v, want 12/3", record["processed"], record["actions"])
	}
	if record["duration_ms"] != float64(150) {
		t.Errorf("duration_ms = %v, want 150", record["duration_ms"])
	}
}

func TestJobItemError_CarriesLeadAndCause(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.JobItemError("protection_expiry", "lead-42", errors.New("row gone"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if record["lead_id"] != "lead-42" || record["error"] != "row gone" {
		t.Errorf("record = %v, want lead-42 with cause", record)
	}
}
