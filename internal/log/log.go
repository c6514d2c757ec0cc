// Package log wraps log/slog with the process-wide logger used by opensig.
//
// Warnings and errors go to stderr. With a debug directory configured, every
// record is also appended as JSON to a daily file so that a failed signing
// run can be reconstructed after the fact.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu         sync.Mutex
	base       slog.Handler
	logger     *slog.Logger
	fileWriter *FileWriter
)

// Options configures the logger.
type Options struct {
	// Verbose lowers the stderr threshold to debug.
	Verbose bool
	// Level overrides the stderr threshold ("debug", "info", "warn", "error").
	// Ignored when Verbose is set.
	Level string
	// JSONFormat writes stderr records as JSON.
	JSONFormat bool
	// DebugDir receives daily JSON log files. Empty disables file logging.
	DebugDir string
	// RetentionDays is how long daily files are kept (0 keeps everything).
	RetentionDays int
	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Init installs the global logger.
func Init(opts Options) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	stderrOpts := &slog.HandlerOptions{Level: level}
	var handlers []slog.Handler
	if opts.JSONFormat {
		handlers = append(handlers, slog.NewJSONHandler(stderr, stderrOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stderr, stderrOpts))
	}

	mu.Lock()
	defer mu.Unlock()

	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
	if opts.DebugDir != "" {
		if opts.RetentionDays > 0 {
			Cleanup(opts.DebugDir, opts.RetentionDays)
		}
		fw, err := NewFileWriter(opts.DebugDir)
		if err != nil {
			return err
		}
		fileWriter = fw
		handlers = append(handlers, slog.NewJSONHandler(fw, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	install(&multiHandler{handlers: handlers})
	return nil
}

// install must be called with mu held.
func install(h slog.Handler) {
	base = h
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// Close flushes and closes the debug file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
}

// multiHandler fans out records to every handler that accepts the level.
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

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { current().Error(msg, args...) }

// With returns a logger carrying args.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Component returns a logger tagged with the subsystem name.
func Component(name string) *slog.Logger {
	return current().With("component", name)
}

// SetOutput replaces all handlers with a debug-level text handler on w.
// Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	install(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetSessionID tags subsequent records with the signing session they
// belong to.
func SetSessionID(sessionID string) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(base.WithAttrs([]slog.Attr{slog.String("session_id", sessionID)}))
	slog.SetDefault(logger)
}

// ClearSessionID drops the session tag.
func ClearSessionID() {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(base)
	slog.SetDefault(logger)
}

func init() {
	base = slog.Default().Handler()
	logger = slog.Default()
}
