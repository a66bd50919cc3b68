package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var level atomic.Int32

func init() {
	level.Store(int32(log.InfoLevel))
}

// SetLevel changes the level used by every handler created afterwards.
// Unknown names fall back to info.
func SetLevel(name string) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		lvl = log.InfoLevel
	}
	level.Store(int32(lvl))
}

func NewHandler(name string) slog.Handler {
	return NewHandlerTo(os.Stderr, name)
}

// NewHandlerTo is NewHandler with an explicit destination, mostly
// useful in tests.
func NewHandlerTo(w io.Writer, name string) slog.Handler {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          name,
		Level:           log.Level(level.Load()),
	})
}

func New(name string) *slog.Logger {
	return slog.New(NewHandler(name))
}

func NewContext(ctx context.Context, name string) context.Context {
	return IntoContext(ctx, New(name))
}

type ctxKey struct{}

// IntoContext adds a logger to a context. Use FromContext to
// pull the logger out.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns a logger from a context.Context;
// if the passed context is nil or carries no logger, we return the
// default slog logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}

	return slog.Default()
}

// SubLogger derives a new logger from an existing one by appending a
// suffix to its prefix.
func SubLogger(base *slog.Logger, suffix string) *slog.Logger {
	if cl, ok := base.Handler().(*log.Logger); ok {
		prefix := cl.GetPrefix()
		if prefix != "" {
			prefix = prefix + "/" + suffix
		} else {
			prefix = suffix
		}
		return slog.New(NewHandler(prefix))
	}

	return slog.New(NewHandler(suffix))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
