package logger

import (
	"context"
	"log/slog"

	"github.com/nekogravitycat/blog-backend/internal/pkg/redact"
)

// redactHandler rewrites every attribute before the wrapped handler sees it.
// Records are rebuilt rather than modified, so concurrent callers sharing
// argument values never observe each other's redaction.
type redactHandler struct {
	next slog.Handler
}

func (h redactHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, redact.String(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return redactHandler{next: h.next.WithAttrs(clean)}
}

func (h redactHandler) WithGroup(name string) slog.Handler {
	return redactHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if redact.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redact.Marker)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]any, len(members))
		for i, m := range members {
			clean[i] = redactAttr(m)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindString:
		return slog.String(a.Key, redact.String(a.Value.String()))
	case slog.KindAny:
		return slog.Any(a.Key, redact.Value(a.Value.Any()))
	default:
		return a
	}
}
