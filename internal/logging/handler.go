package logging

import (
	"context"
	"log/slog"
)

// renameErr rewrites "error" attributes to "err" before handing the record on.
type renameErr struct {
	next slog.Handler
}

func (h renameErr) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h renameErr) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(rename(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h renameErr) WithAttrs(attrs []slog.Attr) slog.Handler {
	renamed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		renamed[i] = rename(a)
	}
	return renameErr{h.next.WithAttrs(renamed)}
}

func (h renameErr) WithGroup(name string) slog.Handler {
	return renameErr{h.next.WithGroup(name)}
}

func rename(a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}
