package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
)

type Logger struct {
	json bool
	sl   *slog.Logger
}

func New(jsonOutput bool) *Logger {
	return NewWithWriter(os.Stdout, jsonOutput)
}

// NewWithWriter builds a logger that writes to w instead of stdout.
func NewWithWriter(w io.Writer, jsonOutput bool) *Logger {
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, nil)
	} else {
		h = slog.NewTextHandler(w, nil)
	}
	return &Logger{json: jsonOutput, sl: slog.New(h)}
}

func (l *Logger) log(level slog.Level, msg string, fields map[string]any) {
	if l == nil {
		return
	}
	// sorted so text output is stable between runs
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.sl.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l *Logger) Info(msg string, fields map[string]any)  { l.log(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(slog.LevelError, msg, fields) }

// JSONEnabled reports whether this logger is configured to emit JSON output.
func (l *Logger) JSONEnabled() bool { return l != nil && l.json }

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, false)
}
