package analytics

import (
	"context"
	"log/slog"

	"fieldops.dev/punchclock/punch"
)

type logRecorder struct {
	l *slog.Logger
}

// NewLogRecorder writes one line per attempt to l.
func NewLogRecorder(l *slog.Logger) punch.Recorder {
	return &logRecorder{l: l}
}

func (r *logRecorder) Record(ctx context.Context, a punch.Attempt) {
	attrs := []slog.Attr{
		slog.String("attempt", a.ID),
		slog.String("direction", string(a.Direction)),
		slog.Duration("duration", a.Duration),
		slog.Time("started", a.Started),
	}

	if a.Succeeded() {
		r.l.LogAttrs(ctx, slog.LevelInfo, "punch attempt succeeded", attrs...)
		return
	}

	attrs = append(attrs,
		slog.String("kind", a.FailureKind()),
		slog.String("err", a.Err.Error()),
	)
	r.l.LogAttrs(ctx, slog.LevelWarn, "punch attempt failed", attrs...)
}
