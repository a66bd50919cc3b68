package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch/models"
)

// Permissions asks the worker (or the platform) for access to a device
// capability. It blocks until the request is answered.
type Permissions interface {
	Request(ctx context.Context, resource models.Resource) (bool, error)
}

type Lens string

const (
	LensFront Lens = "front"
	LensBack  Lens = "back"
)

type CaptureOptions struct {
	Lens Lens
	// still photo only; video is never requested
	StillPhoto bool
	// when false the photo must not end up in a shared gallery
	SaveToLibrary bool
}

// Camera takes one photo. It returns a *models.CaptureCancelledError
// when the worker backs out or the device fails.
type Camera interface {
	Capture(ctx context.Context, opts CaptureOptions) (*models.Photo, error)
}

type LocateOptions struct {
	HighAccuracy bool
}

// Locator produces a single position fix.
type Locator interface {
	Locate(ctx context.Context, opts LocateOptions) (*models.Fix, error)
}

var punchCapture = CaptureOptions{
	Lens:          LensFront,
	StillPhoto:    true,
	SaveToLibrary: false,
}

type Broker struct {
	perms   Permissions
	camera  Camera
	locator Locator
	now     func() time.Time
	l       *slog.Logger
}

type Opt func(*Broker)

func WithClock(now func() time.Time) Opt {
	return func(b *Broker) {
		b.now = now
	}
}

func WithLogger(l *slog.Logger) Opt {
	return func(b *Broker) {
		b.l = l
	}
}

func New(perms Permissions, camera Camera, locator Locator, opts ...Opt) *Broker {
	b := &Broker{
		perms:   perms,
		camera:  camera,
		locator: locator,
		now:     time.Now,
		l:       log.New("broker"),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Acquire gathers the evidence for one punch. Each step waits for its
// answer before the next starts and the first failure ends the
// sequence. Nothing is retried or cached between calls.
func (b *Broker) Acquire(ctx context.Context, dir models.Direction) (*models.Evidence, error) {
	l := b.l.With("direction", dir)

	if err := b.request(ctx, models.ResourceLocation); err != nil {
		l.Info("location permission not granted", "err", err)
		return nil, err
	}

	if err := b.request(ctx, models.ResourceCamera); err != nil {
		l.Info("camera permission not granted", "err", err)
		return nil, err
	}

	photo, err := b.camera.Capture(ctx, punchCapture)
	if err != nil {
		var cancelled *models.CaptureCancelledError
		if !errors.As(err, &cancelled) {
			err = &models.CaptureCancelledError{Detail: err.Error(), Err: err}
		}
		l.Info("capture did not complete", "err", err)
		return nil, err
	}
	if photo == nil || photo.Released() {
		return nil, &models.CaptureCancelledError{Detail: "camera returned no photo"}
	}
	l.Debug("photo captured", "name", photo.Name, "type", photo.ContentType, "bytes", photo.Size())

	fix, err := b.locator.Locate(ctx, LocateOptions{HighAccuracy: true})
	if err != nil || fix == nil {
		photo.Release()
		var unavailable *models.LocationUnavailableError
		if err == nil {
			err = &models.LocationUnavailableError{Err: errors.New("locator returned no fix")}
		} else if !errors.As(err, &unavailable) {
			err = &models.LocationUnavailableError{Err: err}
		}
		l.Warn("no location fix", "err", err)
		return nil, err
	}
	l.Debug("location fixed", "lat", fix.Latitude, "long", fix.Longitude, "accuracy", fix.Accuracy)

	return &models.Evidence{
		Photo:      photo,
		Location:   *fix,
		CapturedAt: b.now().Local(),
	}, nil
}

func (b *Broker) request(ctx context.Context, resource models.Resource) error {
	granted, err := b.perms.Request(ctx, resource)
	if err != nil {
		return &models.PermissionDeniedError{Resource: resource, Err: err}
	}
	if !granted {
		return &models.PermissionDeniedError{Resource: resource}
	}
	return nil
}
