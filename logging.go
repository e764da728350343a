package reactivebridge

import (
	"log/slog"
	"sync/atomic"
)

// pkgLogger holds the package-wide structured logger. Tests and callers
// that want quieter output can override it with SetLogger. By default it is
// slog.Default(), and every message this package logs is at
// slog.LevelDebug, so a production program using the default handler sees
// none of it unless it explicitly enables debug logging.
var pkgLogger atomic.Pointer[slog.Logger]

func init() {
	pkgLogger.Store(slog.Default())
}

// SetLogger overrides the logger used for this package's internal debug
// diagnostics (state transitions of registries, tasks, and channels). It is
// never required for correct operation; it exists purely to let a program
// correlate this package's internal state changes with its own logs.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	pkgLogger.Store(l)
}

func logger() *slog.Logger {
	return pkgLogger.Load()
}
