package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type API struct {
	Endpoint     string        `env:"ENDPOINT, default=http://localhost:8000/api/"`
	Timeout      time.Duration `env:"TIMEOUT, default=30s"`
	StatsTTL     time.Duration `env:"STATS_TTL, default=1m"`
	ReadAttempts uint          `env:"READ_ATTEMPTS, default=3"`
	RetryDelay   time.Duration `env:"RETRY_DELAY, default=500ms"`
}

type Session struct {
	// takes precedence over TokenFile
	Token     string `env:"TOKEN"`
	TokenFile string `env:"TOKEN_FILE, default=$HOME/.config/punchclock/token"`
}

type State struct {
	Provider string `env:"PROVIDER, default=sqlite"`
	DBPath   string `env:"DB_PATH, default=$HOME/.local/share/punchclock/state.db"`
	RedisURL string `env:"REDIS_URL"`
}

type Device struct {
	Permissions string   `env:"PERMISSIONS, default=prompt"`
	Camera      string   `env:"CAMERA, default=command"`
	CameraCmd   []string `env:"CAMERA_CMD"`
	CameraLens  string   `env:"CAMERA_LENS"`
	PhotoPath   string   `env:"PHOTO_PATH"`
	Locator     string   `env:"LOCATOR, default=command"`
	LocatorCmd  []string `env:"LOCATOR_CMD"`
	MaxAccuracy float64  `env:"MAX_ACCURACY"`
	// "lat,long"; used by the static locator
	StaticLocation string `env:"STATIC_LOCATION"`
	// "lat,long"; replaces the submitted lat/long fields when set
	LocationOverride string `env:"LOCATION_OVERRIDE"`
}

type Local struct {
	ListenAddr string `env:"LISTEN_ADDR, default=127.0.0.1:6580"`
}

type Posthog struct {
	ApiKey   string `env:"API_KEY"`
	Endpoint string `env:"ENDPOINT, default=https://eu.i.posthog.com"`
}

type Config struct {
	API       API           `env:",prefix=PUNCHCLOCK_API_"`
	Session   Session       `env:",prefix=PUNCHCLOCK_SESSION_"`
	State     State         `env:",prefix=PUNCHCLOCK_STATE_"`
	Device    Device        `env:",prefix=PUNCHCLOCK_DEVICE_"`
	Local     Local         `env:",prefix=PUNCHCLOCK_LOCAL_"`
	Posthog   Posthog       `env:",prefix=PUNCHCLOCK_POSTHOG_"`
	LogLevel  string        `env:"PUNCHCLOCK_LOG_LEVEL, default=info"`
	NoticeTTL time.Duration `env:"PUNCHCLOCK_NOTICE_TTL, default=5s"`
	Worker    string        `env:"PUNCHCLOCK_WORKER"`
}

var (
	DefaultCameraCmd  = []string{"fswebcam", "--no-banner", "-r", "640x480", "{output}"}
	DefaultLocatorCmd = []string{"gpspipe", "-w", "-n", "10"}
)

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	err := envconfig.Process(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	return finish(&cfg)
}

// LoadWith reads the configuration from l instead of the process
// environment.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	})
	if err != nil {
		return nil, err
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if len(cfg.Device.CameraCmd) == 0 {
		cfg.Device.CameraCmd = DefaultCameraCmd
	}
	if len(cfg.Device.LocatorCmd) == 0 {
		cfg.Device.LocatorCmd = DefaultLocatorCmd
	}

	if !strings.HasSuffix(cfg.API.Endpoint, "/") {
		cfg.API.Endpoint += "/"
	}

	switch cfg.State.Provider {
	case "sqlite", "memory":
	case "redis":
		if cfg.State.RedisURL == "" {
			return nil, fmt.Errorf("PUNCHCLOCK_STATE_REDIS_URL is required for the redis state provider")
		}
	default:
		return nil, fmt.Errorf("unknown state provider %q", cfg.State.Provider)
	}

	if cfg.Device.LocationOverride != "" {
		if _, _, err := ParseCoordinates(cfg.Device.LocationOverride); err != nil {
			return nil, fmt.Errorf("PUNCHCLOCK_DEVICE_LOCATION_OVERRIDE: %w", err)
		}
	}
	if cfg.Device.StaticLocation != "" {
		if _, _, err := ParseCoordinates(cfg.Device.StaticLocation); err != nil {
			return nil, fmt.Errorf("PUNCHCLOCK_DEVICE_STATIC_LOCATION: %w", err)
		}
	}

	return cfg, nil
}

// ParseCoordinates reads a "lat,long" pair.
func ParseCoordinates(s string) (float64, float64, error) {
	latStr, longStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected \"lat,long\", got %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(longStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}

	if lat < -90 || lat > 90 || long < -180 || long > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %v,%v", lat, long)
	}
	return lat, long, nil
}
