// Package logger provides the process-wide structured logger.
//
// Records are routed by level, pass through a redaction handler before any
// sink sees them, and are written as one JSON object per line in production or
// whenever the output is not a terminal. Interactive development sessions get a
// colorized console format instead.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Levels, from most to least verbose. slog has no trace or fatal level of its own.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelFatal = slog.Level(12)
)

const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures New.
type Options struct {
	Level      slog.Level
	Format     string // FormatAuto, FormatJSON or FormatText
	Production bool
	// Writer receives records below LevelError (default os.Stdout).
	Writer io.Writer
	// ErrorWriter, when set, receives records at LevelError and above instead of Writer.
	ErrorWriter io.Writer
}

// New builds a logger according to opts. It does not touch slog.Default.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var h slog.Handler = newSink(w, opts)
	if opts.ErrorWriter != nil {
		h = levelRouter{
			low:       h,
			high:      newSink(opts.ErrorWriter, opts),
			threshold: LevelError,
		}
	}

	return slog.New(redactHandler{next: h})
}

// Setup builds a logger and installs it as the slog default.
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

func newSink(w io.Writer, opts Options) slog.Handler {
	jsonOut := true
	switch opts.Format {
	case FormatText:
		jsonOut = false
	case FormatJSON:
		jsonOut = true
	default:
		jsonOut = opts.Production || !isTerminal(w)
	}

	if jsonOut {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       opts.Level,
			ReplaceAttr: jsonLevelNames,
		})
	}

	return tint.NewHandler(w, &tint.Options{
		Level:       opts.Level,
		TimeFormat:  time.DateTime,
		NoColor:     !isTerminal(w),
		ReplaceAttr: consoleLevelNames,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// LevelName returns the lowercase name used in output for l.
func LevelName(l slog.Level) string {
	switch {
	case l >= LevelFatal:
		return "fatal"
	case l >= LevelError:
		return "error"
	case l >= LevelWarn:
		return "warn"
	case l >= LevelInfo:
		return "info"
	case l >= LevelDebug:
		return "debug"
	default:
		return "trace"
	}
}

func jsonLevelNames(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, LevelName(lvl))
		}
	}
	return a
}

// consoleLevelNames only renames the levels slog cannot print; the standard ones
// keep their colors.
func consoleLevelNames(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			switch {
			case lvl >= LevelFatal:
				return slog.String(slog.LevelKey, "FTL")
			case lvl < LevelDebug:
				return slog.String(slog.LevelKey, "TRC")
			}
		}
	}
	return a
}

// ParseLevel parses one of trace|debug|info|warn|error|fatal.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (valid levels are trace|debug|info|warn|error|fatal)", s)
	}
}

// Trace logs at LevelTrace.
func Trace(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelTrace, msg, args...)
}

// levelRouter sends records at or above threshold to high, the rest to low.
type levelRouter struct {
	low, high slog.Handler
	threshold slog.Level
}

func (h levelRouter) Enabled(ctx context.Context, lvl slog.Level) bool {
	if lvl >= h.threshold {
		return h.high.Enabled(ctx, lvl)
	}
	return h.low.Enabled(ctx, lvl)
}

func (h levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.threshold {
		return h.high.Handle(ctx, r)
	}
	return h.low.Handle(ctx, r)
}

func (h levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelRouter{low: h.low.WithAttrs(attrs), high: h.high.WithAttrs(attrs), threshold: h.threshold}
}

func (h levelRouter) WithGroup(name string) slog.Handler {
	return levelRouter{low: h.low.WithGroup(name), high: h.high.WithGroup(name), threshold: h.threshold}
}
