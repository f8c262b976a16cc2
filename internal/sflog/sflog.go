// Package sflog holds the runtime's one shared logger. It is global
// mutable state by design: every package that wants to log a
// load-time or CLI-time event reaches for sflog.L() rather than
// threading a *slog.Logger through every constructor. internal/exec's
// per-tile hot path never calls into this package — only engine.Run's
// task-boundary error paths and the cmd/ driver binaries do.
package sflog

import (
	"log/slog"
	"os"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// L returns the shared logger, initializing it on first use to a
// text handler on stderr at Info level.
func L() *slog.Logger {
	once.Do(func() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})
	return logger
}

// SetLevel replaces the shared logger with one at the given level.
// Driver binaries call this once, from flag parsing, before touching
// anything that might log.
func SetLevel(level slog.Level) {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	once.Do(func() {}) // ensure L() never re-initializes over this
}
