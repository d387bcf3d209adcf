// Package logging provides structured logging configuration using log/slog.
//
// Console output goes to stdout at the configured level. Warnings and errors
// are additionally written to an error log file so a failed run can be
// inspected after the terminal is gone.
//
// This package integrates with chi's RequestID middleware to propagate
// request IDs through structured log entries when running as a server.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// When errorFile is not empty, records at WARN and above are also appended
// to it; parent directories are created. The returned function closes the
// file and is safe to call when no file was opened.
func Setup(level, format, errorFile string) (func() error, error) {
	var errW io.Writer
	closeFn := func() error { return nil }

	if errorFile != "" {
		if err := os.MkdirAll(filepath.Dir(errorFile), 0o755); err != nil {
			return closeFn, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(errorFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closeFn, fmt.Errorf("open error log: %w", err)
		}
		errW = f
		closeFn = f.Close
	}

	slog.SetDefault(New(os.Stdout, errW, level, format))
	return closeFn, nil
}

// New builds a logger writing to out at the given level and, when errW is
// not nil, copying WARN and above to errW. The error copy is always text.
func New(out, errW io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if errW != nil {
		handler = &teeHandler{
			primary: handler,
			errors:  slog.NewTextHandler(errW, &slog.HandlerOptions{Level: slog.LevelWarn}),
		}
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// teeHandler sends each record to both handlers, each applying its own level.
type teeHandler struct {
	primary slog.Handler
	errors  slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.primary.Enabled(ctx, l) || h.errors.Enabled(ctx, l)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.primary.Enabled(ctx, r.Level) {
		firstErr = h.primary.Handle(ctx, r.Clone())
	}
	if h.errors.Enabled(ctx, r.Level) {
		if err := h.errors.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: h.primary.WithAttrs(attrs), errors: h.errors.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: h.primary.WithGroup(name), errors: h.errors.WithGroup(name)}
}

// FromContext returns a logger enriched with request context.
//
// When called with a request context that contains a chi RequestID,
// the returned logger automatically includes request_id in all log entries.
//
// Usage:
//
//	func handleRun(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("run started", "barcodes", name)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	runLogger := logging.WithFields(ctx, "run_id", runID)
//	runLogger.Info("run started")
//	// ... later ...
//	runLogger.Info("run completed", "aggregated", n)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
