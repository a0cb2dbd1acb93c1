package perf

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	// Set TABTREE_PERF=1 to enable performance logging
	enabled = os.Getenv("TABTREE_PERF") == "1"

	loggerMu sync.RWMutex
	logger   *slog.Logger
)

// SetLogger routes perf records to l instead of slog.Default().
func SetLogger(l *slog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// SetEnabled toggles perf logging at runtime (the -perf flag).
func SetEnabled(on bool) {
	loggerMu.Lock()
	enabled = on
	loggerMu.Unlock()
}

func current() (*slog.Logger, bool) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return slog.Default(), enabled
	}
	return logger, enabled
}

// Timer tracks elapsed time for a named operation
type Timer struct {
	name  string
	start time.Time
	attrs []any
}

// Start begins timing an operation. attrs are key/value pairs added to the record.
func Start(name string, attrs ...any) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
		attrs: attrs,
	}
}

// Stop ends timing and logs the result
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if l, on := current(); on {
		l.Info("perf", append([]any{"op", t.name, "elapsed", elapsed}, t.attrs...)...)
	}
	return elapsed
}
