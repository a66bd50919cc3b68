// Package setup builds the punchclock components from configuration.
package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fieldops.dev/punchclock/config"
	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch"
	"fieldops.dev/punchclock/punch/analytics"
	"fieldops.dev/punchclock/punch/broker"
	"fieldops.dev/punchclock/punch/hrclient"
	"fieldops.dev/punchclock/punch/state"
	"fieldops.dev/punchclock/session"
	"github.com/posthog/posthog-go"
)

// Load reads the configuration and applies its log level.
func Load(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func Client(cfg *config.Config) (*hrclient.Client, error) {
	tokens := session.FromConfig(cfg.Session.Token, cfg.Session.TokenFile)

	opts := []hrclient.Opt{
		hrclient.WithLogger(log.New("hrclient")),
		hrclient.WithTimeout(cfg.API.Timeout),
		hrclient.WithStatsTTL(cfg.API.StatsTTL),
		hrclient.WithRetry(cfg.API.ReadAttempts, cfg.API.RetryDelay),
	}
	if cfg.Device.LocationOverride != "" {
		lat, long, err := config.ParseCoordinates(cfg.Device.LocationOverride)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hrclient.WithCoordinateOverride(lat, long))
	}

	return hrclient.NewClient(cfg.API.Endpoint, tokens, opts...)
}

// Store opens the configured punch state store. The returned func
// releases it.
func Store(cfg *config.Config) (state.Store, func() error, error) {
	slot := state.SlotFor(cfg.Worker)
	noop := func() error { return nil }

	switch cfg.State.Provider {
	case "memory":
		return state.NewMemoryStore(), noop, nil
	case "redis":
		s, err := state.NewRedisStore(cfg.State.RedisURL, slot)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.State.DBPath), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating state directory: %w", err)
		}
		s, err := state.NewSQLiteStore(cfg.State.DBPath, state.WithSlot(slot))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

func Broker(cfg *config.Config) (*broker.Broker, error) {
	d := cfg.Device

	var perms broker.Permissions
	switch d.Permissions {
	case "prompt":
		perms = broker.NewTerminalPermissions()
	case "grant":
		perms = broker.GrantAll()
	default:
		return nil, fmt.Errorf("unknown permissions provider %q (prompt, grant)", d.Permissions)
	}

	var camera broker.Camera
	switch d.Camera {
	case "command":
		cam := &broker.CommandCamera{Args: d.CameraCmd}
		if d.CameraLens != "" {
			cam.Devices = map[broker.Lens]string{broker.LensFront: d.CameraLens}
		}
		camera = cam
	case "file":
		if d.PhotoPath == "" {
			return nil, fmt.Errorf("PUNCHCLOCK_DEVICE_PHOTO_PATH is required for the file camera")
		}
		camera = &broker.FileCamera{Path: d.PhotoPath, Consume: true}
	default:
		return nil, fmt.Errorf("unknown camera provider %q (command, file)", d.Camera)
	}

	var locator broker.Locator
	switch d.Locator {
	case "command":
		locator = &broker.CommandLocator{Args: d.LocatorCmd, MaxAccuracy: d.MaxAccuracy}
	case "static":
		if d.StaticLocation == "" {
			return nil, fmt.Errorf("PUNCHCLOCK_DEVICE_STATIC_LOCATION is required for the static locator")
		}
		lat, long, err := config.ParseCoordinates(d.StaticLocation)
		if err != nil {
			return nil, err
		}
		locator = &broker.StaticLocator{Latitude: lat, Longitude: long}
	default:
		return nil, fmt.Errorf("unknown locator provider %q (command, static)", d.Locator)
	}

	return broker.New(perms, camera, locator, broker.WithLogger(log.New("broker"))), nil
}

// Recorders returns the attempt recorders to install. PostHog is only
// used when an API key is configured.
func Recorders(cfg *config.Config) ([]punch.Recorder, func(), error) {
	recorders := []punch.Recorder{analytics.NewLogRecorder(log.New("attempts"))}
	if cfg.Posthog.ApiKey == "" {
		return recorders, func() {}, nil
	}

	client, err := posthog.NewWithConfig(cfg.Posthog.ApiKey, posthog.Config{Endpoint: cfg.Posthog.Endpoint})
	if err != nil {
		return nil, nil, fmt.Errorf("creating posthog client: %w", err)
	}
	recorders = append(recorders, analytics.NewPosthogRecorder(client, cfg.Worker))
	return recorders, func() { client.Close() }, nil
}

// Punch is everything a punch command needs, wired together.
type Punch struct {
	Controller *punch.Controller
	Client     *hrclient.Client

	closers []func()
}

func (p *Punch) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func NewPunch(ctx context.Context, cfg *config.Config) (*Punch, error) {
	p := &Punch{}
	fail := func(err error) (*Punch, error) {
		p.Close()
		return nil, err
	}

	client, err := Client(cfg)
	if err != nil {
		return fail(err)
	}
	p.Client = client
	p.closers = append(p.closers, client.Close)

	store, closeStore, err := Store(cfg)
	if err != nil {
		return fail(err)
	}
	p.closers = append(p.closers, func() { closeStore() })

	brk, err := Broker(cfg)
	if err != nil {
		return fail(err)
	}

	recorders, closeRecorders, err := Recorders(cfg)
	if err != nil {
		return fail(err)
	}
	p.closers = append(p.closers, closeRecorders)

	p.Controller = punch.New(ctx, brk, client, store,
		punch.WithLogger(log.New("punch")),
		punch.WithNoticeTTL(cfg.NoticeTTL),
		punch.WithRecorder(recorders...),
	)
	p.closers = append(p.closers, p.Controller.Close)

	return p, nil
}
