package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"HOME": "/home/guard",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/", cfg.API.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, uint(3), cfg.API.ReadAttempts)
	assert.Equal(t, "/home/guard/.config/punchclock/token", cfg.Session.TokenFile)
	assert.Equal(t, "sqlite", cfg.State.Provider)
	assert.Equal(t, "/home/guard/.local/share/punchclock/state.db", cfg.State.DBPath)
	assert.Equal(t, DefaultCameraCmd, cfg.Device.CameraCmd)
	assert.Equal(t, DefaultLocatorCmd, cfg.Device.LocatorCmd)
	assert.Equal(t, 5*time.Second, cfg.NoticeTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Device.LocationOverride)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"PUNCHCLOCK_API_ENDPOINT":             "https://hr.example.com/api",
		"PUNCHCLOCK_SESSION_TOKEN":            "tok",
		"PUNCHCLOCK_STATE_PROVIDER":           "redis",
		"PUNCHCLOCK_STATE_REDIS_URL":          "redis://localhost:6379/0",
		"PUNCHCLOCK_DEVICE_CAMERA_CMD":        "libcamera-still,-o,{output}",
		"PUNCHCLOCK_DEVICE_LOCATION_OVERRIDE": "18.109581,-77.297508",
		"PUNCHCLOCK_NOTICE_TTL":               "2s",
		"PUNCHCLOCK_WORKER":                   "w-17",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://hr.example.com/api/", cfg.API.Endpoint)
	assert.Equal(t, "tok", cfg.Session.Token)
	assert.Equal(t, "redis", cfg.State.Provider)
	assert.Equal(t, []string{"libcamera-still", "-o", "{output}"}, cfg.Device.CameraCmd)
	assert.Equal(t, 2*time.Second, cfg.NoticeTTL)
	assert.Equal(t, "w-17", cfg.Worker)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "redis without url",
			env:  map[string]string{"PUNCHCLOCK_STATE_PROVIDER": "redis"},
		},
		{
			name: "unknown provider",
			env:  map[string]string{"PUNCHCLOCK_STATE_PROVIDER": "etcd"},
		},
		{
			name: "bad override",
			env:  map[string]string{"PUNCHCLOCK_DEVICE_LOCATION_OVERRIDE": "north"},
		},
		{
			name: "bad static location",
			env:  map[string]string{"PUNCHCLOCK_DEVICE_STATIC_LOCATION": "91,0"},
		},
		{
			name: "bad duration",
			env:  map[string]string{"PUNCHCLOCK_NOTICE_TTL": "soon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	lat, long, err := ParseCoordinates(" 18.1 , -77.3 ")
	require.NoError(t, err)
	assert.Equal(t, 18.1, lat)
	assert.Equal(t, -77.3, long)

	_, _, err = ParseCoordinates("18.1")
	assert.Error(t, err)
	_, _, err = ParseCoordinates("18.1,181")
	assert.Error(t, err)
}
