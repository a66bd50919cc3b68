package hrclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"fieldops.dev/punchclock/punch/models"
)

func (c *Client) Leaves(ctx context.Context) ([]models.Leave, error) {
	var resp envelope
	err := c.read(ctx, "get-leave", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("get-leave"), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}

	if ok, _ := resp.ok(); !ok {
		return nil, &models.SubmissionError{Message: resp.Message}
	}

	var leaves []models.Leave
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &leaves); err != nil {
			return nil, &models.TransportError{Err: err}
		}
	}
	return leaves, nil
}

// ApplyLeave files a leave request and returns the backend's message.
// It is sent once; a rejection carries the backend's reason.
func (c *Client) ApplyLeave(ctx context.Context, app models.LeaveApplication) (string, error) {
	if err := app.Validate(); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("reason", string(app.Type))
	form.Set("start_date", app.StartDate)
	form.Set("end_date", app.EndDate)
	form.Set("description", app.Description)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("leave"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &models.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", &models.TransportError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError("", resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &models.TransportError{Status: resp.StatusCode, Err: err}
	}
	if ok, _ := env.ok(); !ok {
		return "", &models.SubmissionError{Message: env.Message}
	}

	c.l.Info("leave applied", "type", app.Type, "start", app.StartDate, "end", app.EndDate)
	c.InvalidateStats()
	return env.Message, nil
}
