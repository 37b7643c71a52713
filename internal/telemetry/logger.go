// Package telemetry configures process-wide structured logging.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

// NewLogger builds a JSON logger writing to stdout and, when logFile is set,
// appending to that file as well. silenceStdout drops the stdout handler,
// which the live terminal view needs so log lines do not tear the screen.
func NewLogger(debug bool, logFile string, silenceStdout bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if !silenceStdout {
		handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		} else {
			slog.Error("Failed to open log file", "path", logFile, "error", err)
		}
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewJSONHandler(io.Discard, opts))
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(&multiHandler{handlers: handlers})
	}
}

// InitLogger configures the default logger.
func InitLogger(debug bool, logFile string, silenceStdout bool) {
	slog.SetDefault(NewLogger(debug, logFile, silenceStdout))
}

// Component returns the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every handler even when an earlier one fails.
func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// LogDebug logs a debug message.
func LogDebug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// LogInfo logs an info message.
func LogInfo(msg string, args ...any) {
	slog.Info(msg, args...)
}

// LogError logs an error message.
func LogError(msg string, err error, args ...any) {
	slog.Error(msg, append(args, "error", err)...)
}
