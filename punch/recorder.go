package punch

import (
	"context"
	"errors"
	"time"

	"fieldops.dev/punchclock/punch/models"
)

// Attempt describes one finished TogglePunch call.
type Attempt struct {
	ID        string
	Direction models.Direction
	Started   time.Time
	Duration  time.Duration
	Outcome   *models.Outcome
	Err       error
}

func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// FailureKind names the class of error that ended the attempt.
func (a Attempt) FailureKind() string {
	if a.Err == nil {
		return ""
	}

	var (
		denied      *models.PermissionDeniedError
		cancelled   *models.CaptureCancelledError
		unavailable *models.LocationUnavailableError
		rejected    *models.SubmissionError
		transport   *models.TransportError
	)
	switch {
	case errors.As(a.Err, &denied):
		return "permission_denied:" + string(denied.Resource)
	case errors.As(a.Err, &cancelled):
		return "capture_cancelled"
	case errors.As(a.Err, &unavailable):
		return "location_unavailable"
	case errors.As(a.Err, &rejected):
		return "rejected"
	case errors.As(a.Err, &transport):
		return "transport"
	case errors.Is(a.Err, context.Canceled), errors.Is(a.Err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "unknown"
}

// Recorder is told about every finished attempt. Implementations must
// not block for long; they run on the attempt's goroutine.
type Recorder interface {
	Record(ctx context.Context, a Attempt)
}
