package models

import (
	"encoding/json"
	"time"
)

// TimeLayout is the wall-clock format the HR backend expects in the
// "time" field. It is device local time, not an instant.
const TimeLayout = "2006-01-02 15:04:05"

type Photo struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

func (p *Photo) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}

// Release drops the image bytes. The photo is unusable afterwards.
func (p *Photo) Release() {
	if p == nil {
		return
	}
	p.Data = nil
}

func (p *Photo) Released() bool {
	return p == nil || p.Data == nil
}

type Fix struct {
	Latitude  float64
	Longitude float64
	// metres, zero when the provider does not report it
	Accuracy float64
	// the provider's full report, forwarded untouched
	Raw json.RawMessage
}

// Evidence is everything attached to one punch attempt. A bundle is
// built for a single attempt and released when the attempt is over.
type Evidence struct {
	Photo      *Photo
	Location   Fix
	CapturedAt time.Time
}

// Timestamp formats CapturedAt in the location it was taken in.
func (e *Evidence) Timestamp() string {
	return e.CapturedAt.Format(TimeLayout)
}

// RawLocation returns the fix payload sent in the "{dir}_location"
// field. Providers that report nothing get a minimal coords document.
func (e *Evidence) RawLocation() []byte {
	if len(e.Location.Raw) > 0 {
		return e.Location.Raw
	}
	raw, _ := json.Marshal(map[string]any{
		"coords": map[string]float64{
			"latitude":  e.Location.Latitude,
			"longitude": e.Location.Longitude,
			"accuracy":  e.Location.Accuracy,
		},
		"timestamp": e.CapturedAt.UnixMilli(),
	})
	return raw
}

func (e *Evidence) Release() {
	if e == nil {
		return
	}
	e.Photo.Release()
}
