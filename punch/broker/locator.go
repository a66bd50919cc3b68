package broker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"

	"fieldops.dev/punchclock/punch/models"
)

// CommandLocator runs a command that prints a position. Two shapes are
// understood:
//
//   - a gpsd JSON stream (gpspipe -w); the last TPV report with a 2D or
//     3D fix wins
//   - a single document {"coords":{"latitude":..,"longitude":..,
//     "accuracy":..},"timestamp":..} as printed by most mobile
//     geolocation bridges
//
// The command sees PUNCHCLOCK_HIGH_ACCURACY=1 when a precise fix is
// requested.
type CommandLocator struct {
	Args []string
	// reject fixes whose reported accuracy is worse than this many
	// metres; zero accepts any
	MaxAccuracy float64
}

var ErrNoFix = errors.New("no position fix in locator output")

func (c *CommandLocator) Locate(ctx context.Context, opts LocateOptions) (*models.Fix, error) {
	if len(c.Args) == 0 {
		return nil, &models.LocationUnavailableError{Err: errors.New("no locator command configured")}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()
	if opts.HighAccuracy {
		cmd.Env = append(cmd.Env, "PUNCHCLOCK_HIGH_ACCURACY=1")
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &models.LocationUnavailableError{Err: err}
	}

	fix, err := ParseFix(stdout.Bytes())
	if err != nil {
		return nil, &models.LocationUnavailableError{Err: err}
	}

	if c.MaxAccuracy > 0 && fix.Accuracy > c.MaxAccuracy {
		return nil, &models.LocationUnavailableError{
			Err: fmt.Errorf("fix accuracy %.0fm is worse than the required %.0fm", fix.Accuracy, c.MaxAccuracy),
		}
	}

	return fix, nil
}

type coordsDoc struct {
	Coords *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  float64  `json:"accuracy"`
	} `json:"coords"`
}

type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Eph   float64  `json:"eph"`
	Epx   float64  `json:"epx"`
	Epy   float64  `json:"epy"`
}

// ParseFix reads locator output in either supported shape.
func ParseFix(out []byte) (*models.Fix, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, ErrNoFix
	}

	var doc coordsDoc
	if err := json.Unmarshal(out, &doc); err == nil && doc.Coords != nil {
		if doc.Coords.Latitude == nil || doc.Coords.Longitude == nil {
			return nil, fmt.Errorf("%w: coords without latitude/longitude", ErrNoFix)
		}
		return newFix(*doc.Coords.Latitude, *doc.Coords.Longitude, doc.Coords.Accuracy, out)
	}

	var best *models.Fix
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var tpv tpvReport
		if err := json.Unmarshal(line, &tpv); err != nil {
			continue
		}
		if tpv.Class != "TPV" || tpv.Mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
			continue
		}
		accuracy := tpv.Eph
		if accuracy == 0 {
			accuracy = math.Max(tpv.Epx, tpv.Epy)
		}
		fix, err := newFix(*tpv.Lat, *tpv.Lon, accuracy, append([]byte(nil), line...))
		if err != nil {
			continue
		}
		best = fix
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNoFix
	}
	return best, nil
}

func newFix(lat, long, accuracy float64, raw []byte) (*models.Fix, error) {
	if math.IsNaN(lat) || math.IsNaN(long) || lat < -90 || lat > 90 || long < -180 || long > 180 {
		return nil, fmt.Errorf("coordinates out of range: %v,%v", lat, long)
	}
	return &models.Fix{
		Latitude:  lat,
		Longitude: long,
		Accuracy:  accuracy,
		Raw:       json.RawMessage(raw),
	}, nil
}

// StaticLocator reports a configured position. It is only ever used
// when explicitly chosen as the provider, e.g. for a fixed kiosk.
type StaticLocator struct {
	Latitude  float64
	Longitude float64
}

func (s *StaticLocator) Locate(ctx context.Context, opts LocateOptions) (*models.Fix, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.LocationUnavailableError{Err: err}
	}
	raw, err := json.Marshal(map[string]any{
		"coords": map[string]float64{
			"latitude":  s.Latitude,
			"longitude": s.Longitude,
			"accuracy":  0,
		},
		"provider": "static",
	})
	if err != nil {
		return nil, &models.LocationUnavailableError{Err: err}
	}
	fix, err := newFix(s.Latitude, s.Longitude, 0, raw)
	if err != nil {
		return nil, &models.LocationUnavailableError{Err: err}
	}
	return fix, nil
}
