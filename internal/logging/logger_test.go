package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_ErrorCopyOnlyReceivesWarnings(t *testing.T) {
	var out, errs bytes.Buffer
	logger := New(&out, &errs, "debug", "text")

	logger.Debug("reading file", "name", "orders.csv")
	logger.Info("run completed")
	logger.Warn("Duplicate barcodes found", "count", 2)
	logger.Error("Unable to read file orders.csv", "stage", "read")

	for _, want := range []string{"reading file", "run completed", "Duplicate barcodes found"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("console output missing %q", want)
		}
	}

	for _, unwanted := range []string{"reading file", "run completed"} {
		if strings.Contains(errs.String(), unwanted) {
			t.Errorf("error output should not contain %q", unwanted)
		}
	}
	for _, want := range []string{"Duplicate barcodes found", "stage=read"} {
		if !strings.Contains(errs.String(), want) {
			t.Errorf("error output missing %q", want)
		}
	}
}

func TestNew_ErrorCopyIgnoresConsoleLevel(t *testing.T) {
	var out, errs bytes.Buffer
	logger := New(&out, &errs, "error", "json")

	logger.Warn("Orders without barcodes found")

	if out.Len() != 0 {
		t.Errorf("console output = %q, want empty", out.String())
	}
	if !strings.Contains(errs.String(), "Orders without barcodes found") {
		t.Errorf("error output = %q, want the warning", errs.String())
	}
}

func TestNew_WithAttrsReachesBoth(t *testing.T) {
	var out, errs bytes.Buffer
	logger := New(&out, &errs, "info", "text").With("run_id", "abc")

	logger.Warn("no data")

	if !strings.Contains(out.String(), "run_id=abc") {
		t.Errorf("console output missing run_id: %q", out.String())
	}
	if !strings.Contains(errs.String(), "run_id=abc") {
		t.Errorf("error output missing run_id: %q", errs.String())
	}
}

func TestNew_WithoutErrorWriter(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, nil, "info", "json")

	logger.Info("hello", "k", 1)

	if !strings.HasPrefix(out.String(), "{") {
		t.Errorf("expected JSON output, got %q", out.String())
	}
	if !strings.Contains(out.String(), `"msg":"hello"`) {
		t.Errorf("output missing message: %q", out.String())
	}
}

func TestSetup_CreatesErrorFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "out", "logs", "errors.log")
	closeFn, err := Setup("error", "text", path)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	slog.Warn("written to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("error log = %q, want the warning", data)
	}
}

func TestSetup_NoErrorFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	closeFn, err := Setup("info", "text", "")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close = %v, want nil", err)
	}
}

func TestFromContext_AddsRequestID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	slog.SetDefault(New(&out, nil, "info", "text"))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "run_id", "r1").Info("run started")

	if !strings.Contains(out.String(), "request_id=req-42") {
		t.Errorf("output missing request id: %q", out.String())
	}
	if !strings.Contains(out.String(), "run_id=r1") {
		t.Errorf("output missing run id: %q", out.String())
	}
}
