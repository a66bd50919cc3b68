package analytics

import (
	"context"
	"log/slog"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch"
	"fieldops.dev/punchclock/punch/models"
	"github.com/posthog/posthog-go"
)

// Enqueuer is the part of posthog.Client the recorder needs.
type Enqueuer interface {
	Enqueue(posthog.Message) error
}

type posthogRecorder struct {
	client Enqueuer
	worker string
	l      *slog.Logger
}

func NewPosthogRecorder(client Enqueuer, worker string) punch.Recorder {
	return &posthogRecorder{
		client: client,
		worker: worker,
		l:      log.New("analytics"),
	}
}

var _ punch.Recorder = &posthogRecorder{}

func (r *posthogRecorder) Record(ctx context.Context, a punch.Attempt) {
	props := posthog.NewProperties().
		Set("attempt", a.ID).
		Set("direction", string(a.Direction)).
		Set("duration_ms", a.Duration.Milliseconds())

	event := "punch_failed"
	if a.Succeeded() {
		event = "punch_" + string(a.Direction)
		if a.Direction == models.DirectionIn && a.Outcome != nil && a.Outcome.Record != nil {
			props.Set("in_time", a.Outcome.Record.InTime)
		}
	} else {
		props.Set("kind", a.FailureKind())
	}

	err := r.client.Enqueue(posthog.Capture{
		DistinctId: r.distinctID(),
		Event:      event,
		Properties: props,
	})
	if err != nil {
		r.l.Error("failed to enqueue posthog event", "err", err, "event", event)
	}
}

func (r *posthogRecorder) distinctID() string {
	if r.worker == "" {
		return "anonymous"
	}
	return r.worker
}
