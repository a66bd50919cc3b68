package hrclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldops.dev/punchclock/punch/models"
)

// statsKey scopes cached stats to the session token. An empty key means
// the token could not be read and nothing is cached.
func (c *Client) statsKey(ctx context.Context) string {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return "stats:" + hex.EncodeToString(sum[:8])
}

type statsResponse struct {
	envelope
	models.Stats
}

// Stats returns the worker's dashboard figures. Results are cached for
// the configured TTL; a successful punch drops the cached copy.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	key := c.statsKey(ctx)
	if key != "" {
		if v, ok := c.cache.Get(key); ok {
			if stats, ok := v.(*models.Stats); ok {
				c.l.Debug("stats served from cache")
				return stats, nil
			}
		}
	}

	var resp statsResponse
	err := c.read(ctx, "stats", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("stats"), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}

	if ok, _ := resp.ok(); !ok {
		return nil, &models.SubmissionError{Message: resp.Message}
	}

	stats := resp.Stats
	if c.statsTTL > 0 && key != "" {
		c.cache.SetWithTTL(key, &stats, 1, c.statsTTL)
		c.cache.Wait()
	}
	return &stats, nil
}

// InvalidateStats drops cached stats for every token.
func (c *Client) InvalidateStats() {
	c.cache.Clear()
}

type attendanceResponse struct {
	envelope
	models.AttendanceReport
}

// Attendance fetches the fortnight report. Zero times leave the range
// to the backend, which then reports the current and previous
// fortnight.
func (c *Client) Attendance(ctx context.Context, start, end time.Time) (*models.AttendanceReport, error) {
	form := url.Values{}
	form.Set("start_date", formatDate(start))
	form.Set("end_date", formatDate(end))

	var resp attendanceResponse
	err := c.read(ctx, "get-attendance", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("get-attendance"), strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}

	if ok, _ := resp.ok(); !ok {
		return nil, &models.SubmissionError{Message: resp.Message}
	}

	report := resp.AttendanceReport
	return &report, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}
