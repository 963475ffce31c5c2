// Package logging wires log/slog for the CLI and the association state machine. It is grounded
// on the teacher's cmd/ctl call sites (logging.Logger(w, json, level) and
// logging.AppendCtx(ctx, attrs...)), which were filtered out of the retrieved pack; this package
// rebuilds them in the shape those call sites already imply, adding gopkg.in/natefinch/
// lumberjack.v2 rotation for the optional --log-file flag so the teacher's own dependency is
// wired rather than left unused.
package logging

import (
	"context"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger returns a slog.Logger writing to w. json selects JSON output (for log aggregation);
// the default is slog's TextHandler, which is easier to read at a terminal.
func Logger(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{Handler: h})
}

// RotatingFileWriter returns an io.Writer that rotates path per lumberjack's defaults (100 MiB
// per file, keeping 3 old files, compressed), for the CLI's --log-file flag.
func RotatingFileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

type ctxKey struct{}

// AppendCtx returns a context carrying attrs, which every subsequent log record emitted through
// that context (via a Logger built by this package) will include. Repeated calls accumulate
// attrs rather than replacing them, so a request-scoped context can add fields at each layer
// (association ID, then message ID, then presentation context ID, ...).
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// ctxHandler wraps an slog.Handler, injecting any attrs attached to the record's context via
// AppendCtx before delegating.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{Handler: h.Handler.WithGroup(name)}
}
