package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
)

// newLogger builds the process logger. format is "console" or "json".
// Struct fields tagged `masq:"secret"` are redacted.
func newLogger(w io.Writer, level, format string, color bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, goerr.Wrap(err, "invalid log level", goerr.V("level", level))
	}

	var handler slog.Handler
	switch format {
	case "console":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(lvl),
			clog.WithColor(color),
		)
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", format))
	}

	return slog.New(&redactHandler{
		Handler: handler,
		replace: masq.New(
			masq.WithTag("secret"),
			masq.WithFieldName("AdminPassHash"),
		),
	}), nil
}

// redactHandler runs every attribute through replace before passing the
// record on, so redaction works the same for every output format.
type redactHandler struct {
	slog.Handler
	replace func(groups []string, a slog.Attr) slog.Attr
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.replace(nil, a))
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.replace(nil, a)
	}
	return &redactHandler{Handler: h.Handler.WithAttrs(redacted), replace: h.replace}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{Handler: h.Handler.WithGroup(name), replace: h.replace}
}

// recoveryLogger lets gorilla/handlers report panics through slog
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic while serving request", "error", fmt.Sprint(v...))
}
