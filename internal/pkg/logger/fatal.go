package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

// exit is swapped in tests.
var exit = os.Exit

// Fatal logs at LevelFatal and terminates the process with status 1.
func Fatal(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelFatal, msg, args...)
	exit(1)
}

// RecoverFatal must be deferred directly. A panic reaching it is an uncaught
// process-level fault: it is logged at fatal level with its stack and the
// process exits, leaving restarts to the process manager.
func RecoverFatal(l *slog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	if l == nil {
		l = slog.Default()
	}
	l.Log(context.Background(), LevelFatal, "uncaught panic",
		"panic", fmt.Sprint(r),
		"stack", string(debug.Stack()),
	)
	exit(1)
}

// Go runs fn on a new goroutine guarded by RecoverFatal.
func Go(l *slog.Logger, fn func()) {
	go func() {
		defer RecoverFatal(l)
		fn()
	}()
}
