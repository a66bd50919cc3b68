package hrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"fieldops.dev/punchclock/punch/models"
)

var ErrIncompleteEvidence = errors.New("evidence has no photo")

// Submit sends one punch. It never retries: a failed punch is repeated
// only by the worker, with fresh evidence.
func (c *Client) Submit(ctx context.Context, dir models.Direction, ev *models.Evidence) (*models.Outcome, error) {
	switch dir {
	case models.DirectionIn:
		res, err := c.PunchIn(ctx, ev)
		if err != nil {
			return nil, err
		}
		record := res.Record
		return &models.Outcome{Direction: dir, Record: &record, Message: res.Message}, nil
	case models.DirectionOut:
		res, err := c.PunchOut(ctx, ev)
		if err != nil {
			return nil, err
		}
		return &models.Outcome{Direction: dir, Message: res.Message}, nil
	}
	return nil, fmt.Errorf("unknown punch direction %q", dir)
}

func (c *Client) PunchIn(ctx context.Context, ev *models.Evidence) (*models.PunchInResult, error) {
	env, err := c.punch(ctx, models.DirectionIn, ev)
	if err != nil {
		return nil, err
	}

	var record models.OpenPunch
	if len(env.Data) == 0 {
		return nil, &models.TransportError{Direction: models.DirectionIn, Err: errors.New("response has no data")}
	}
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return nil, &models.TransportError{Direction: models.DirectionIn, Err: fmt.Errorf("decoding punch record: %w", err)}
	}
	if err := record.Validate(); err != nil {
		return nil, &models.TransportError{Direction: models.DirectionIn, Err: err}
	}

	return &models.PunchInResult{Record: record, Message: env.Message}, nil
}

func (c *Client) PunchOut(ctx context.Context, ev *models.Evidence) (*models.PunchOutResult, error) {
	env, err := c.punch(ctx, models.DirectionOut, ev)
	if err != nil {
		return nil, err
	}
	return &models.PunchOutResult{Message: env.Message}, nil
}

func (c *Client) punch(ctx context.Context, dir models.Direction, ev *models.Evidence) (*envelope, error) {
	l := c.l.With("direction", dir)

	if ev == nil || ev.Photo.Released() {
		return nil, &models.TransportError{Direction: dir, Err: ErrIncompleteEvidence}
	}

	body, contentType, err := c.encodePunch(dir, ev)
	if err != nil {
		return nil, &models.TransportError{Direction: dir, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(dir.Route()), bytes.NewReader(body))
	if err != nil {
		return nil, &models.TransportError{Direction: dir, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		l.Error("punch request failed", "err", err)
		return nil, &models.TransportError{Direction: dir, Err: err}
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, &models.TransportError{Direction: dir, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(dir, resp.StatusCode, raw)
		l.Warn("punch refused", "status", resp.StatusCode, "err", err)
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &models.TransportError{Direction: dir, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	ok, present := env.ok()
	if !present {
		return nil, &models.TransportError{Direction: dir, Status: resp.StatusCode, Err: errors.New("response has no success flag")}
	}
	if !ok {
		l.Info("punch rejected", "message", env.Message)
		return nil, &models.SubmissionError{Direction: dir, Message: env.Message}
	}

	l.Info("punch accepted", "status", resp.StatusCode)
	c.InvalidateStats()
	return &env, nil
}

func (c *Client) encodePunch(dir models.Direction, ev *models.Evidence) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		dir.Field("image"), escapeQuotes(ev.Photo.Name)))
	h.Set("Content-Type", ev.Photo.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(ev.Photo.Data); err != nil {
		return nil, "", err
	}

	lat, long := ev.Location.Latitude, ev.Location.Longitude
	if c.override != nil {
		lat, long = c.override.Latitude, c.override.Longitude
	}

	fields := []struct{ name, value string }{
		{dir.Field("lat"), strconv.FormatFloat(lat, 'f', -1, 64)},
		{dir.Field("long"), strconv.FormatFloat(long, 'f', -1, 64)},
		{dir.Field("location"), string(ev.RawLocation())},
		{"time", ev.Timestamp()},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
