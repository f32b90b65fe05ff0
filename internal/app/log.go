package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// logFileName is the log file created under the configured log directory.
const logFileName = "cfs.log"

// cfsHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
type cfsHandler struct {
	w     io.Writer
	level slog.Leveler
	opID  string
	attrs []slog.Attr
}

func (h *cfsHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *cfsHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, h.opID, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	// One write per record so concurrent requests never interleave lines.
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *cfsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &cfsHandler{
		w:     h.w,
		level: h.level,
		opID:  h.opID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *cfsHandler) WithGroup(string) slog.Handler { return h }

// parseLevel maps a config log level to a slog.Level. Unknown values mean info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger creates a structured logger that writes to both logDir/cfs.log and stderr.
// format is "text" (tab-separated) or "json".
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir, opID, level, format string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	return slog.New(newHandler(w, opID, parseLevel(level), format)), f, nil
}

func newHandler(w io.Writer, opID string, level slog.Level, format string) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}).
			WithAttrs([]slog.Attr{slog.String("op", opID)})
	}
	return &cfsHandler{w: w, level: level, opID: opID}
}

// slogAdapter wraps *slog.Logger to satisfy the cfs.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
