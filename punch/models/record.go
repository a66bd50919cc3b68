package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrMissingInTime = errors.New("punch record has no in_time")

// OpenPunch is a check-in the server has accepted and that has no
// matching check-out yet. Fields other than in_time are kept verbatim
// in Extra and written back unchanged.
type OpenPunch struct {
	InTime string
	Extra  map[string]json.RawMessage
}

func (o OpenPunch) Validate() error {
	if o.InTime == "" {
		return ErrMissingInTime
	}
	return nil
}

// Clone returns a copy that shares nothing with o.
func (o OpenPunch) Clone() *OpenPunch {
	c := &OpenPunch{InTime: o.InTime}
	if o.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(o.Extra))
		for k, v := range o.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return c
}

func (o OpenPunch) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(o.Extra)+1)
	for k, v := range o.Extra {
		out[k] = v
	}
	inTime, err := json.Marshal(o.InTime)
	if err != nil {
		return nil, err
	}
	out["in_time"] = inTime
	return json.Marshal(out)
}

// MarshalYAML emits the same fields as MarshalJSON, with the passthrough
// values decoded so they print as YAML rather than raw bytes.
func (o OpenPunch) MarshalYAML() (any, error) {
	out := make(map[string]any, len(o.Extra)+1)
	for k, raw := range o.Extra {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", k, err)
		}
		out[k] = v
	}
	out["in_time"] = o.InTime
	return out, nil
}

func (o *OpenPunch) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("punch record is not an object")
	}

	o.InTime = ""
	if raw, ok := fields["in_time"]; ok {
		if err := json.Unmarshal(raw, &o.InTime); err != nil {
			return fmt.Errorf("decoding in_time: %w", err)
		}
		delete(fields, "in_time")
	}

	o.Extra = nil
	if len(fields) > 0 {
		o.Extra = fields
	}
	return nil
}

var inTimeLayouts = []string{
	TimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"15:04:05",
	"15:04",
}

// InTimeValue parses InTime in the local zone. Bare clock times are
// returned on the zero date.
func (o OpenPunch) InTimeValue() (time.Time, bool) {
	for _, layout := range inTimeLayouts {
		if t, err := time.ParseInLocation(layout, o.InTime, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Outcome is a successful submission. Record is set for punch-ins only.
type Outcome struct {
	Direction Direction
	Record    *OpenPunch
	Message   string
}

type PunchInResult struct {
	Record  OpenPunch
	Message string
}

type PunchOutResult struct {
	Message string
}
