package hrclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/session"
	"github.com/avast/retry-go/v4"
	"github.com/dgraph-io/ristretto"
)

// responses larger than this are treated as malformed
const maxBody = 4 << 20

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type Client struct {
	endpoint *url.URL
	client   *http.Client
	tokens   session.TokenSource
	l        *slog.Logger

	cache    *ristretto.Cache
	statsTTL time.Duration

	readAttempts uint
	retryDelay   time.Duration

	override *Coordinates
}

type Opt func(*Client)

func WithLogger(l *slog.Logger) Opt {
	return func(c *Client) {
		c.l = l
	}
}

func WithTimeout(d time.Duration) Opt {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithTransport sets the transport requests go through after the auth
// headers are attached.
func WithTransport(rt http.RoundTripper) Opt {
	return func(c *Client) {
		t := c.client.Transport.(AuthTransport)
		t.Base = rt
		c.client.Transport = t
	}
}

func WithStatsTTL(d time.Duration) Opt {
	return func(c *Client) {
		c.statsTTL = d
	}
}

// WithRetry bounds the attempts made by read endpoints. Punches and
// leave applications are always sent once.
func WithRetry(attempts uint, delay time.Duration) Opt {
	return func(c *Client) {
		if attempts == 0 {
			attempts = 1
		}
		c.readAttempts = attempts
		c.retryDelay = delay
	}
}

// WithCoordinateOverride sends a fixed lat/long pair in place of the
// live fix for backends that insist on a registered site position. The
// live fix is still sent in the location field.
func WithCoordinateOverride(lat, long float64) Opt {
	return func(c *Client) {
		c.override = &Coordinates{Latitude: lat, Longitude: long}
	}
}

func NewClient(endpoint string, tokens session.TokenSource, opts ...Opt) (*Client, error) {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid api endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api endpoint %q: scheme must be http or https", endpoint)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e3,
		MaxCost:            1 << 10,
		BufferItems:        64,
		// costs count entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stats cache: %w", err)
	}

	c := &Client{
		endpoint: u,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: AuthTransport{Tokens: tokens},
		},
		tokens:       tokens,
		l:            log.New("hrclient"),
		cache:        cache,
		statsTTL:     time.Minute,
		readAttempts: 3,
		retryDelay:   500 * time.Millisecond,
	}

	for _, o := range opts {
		o(c)
	}

	return c, nil
}

func (c *Client) Close() {
	c.cache.Close()
}

func (c *Client) url(route string) string {
	return c.endpoint.JoinPath(route).String()
}

// envelope is the shape every backend response shares. Attendance
// reports success in "status" instead of "success".
type envelope struct {
	Success *bool           `json:"success"`
	Status  *bool           `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) ok() (bool, bool) {
	switch {
	case e.Success != nil:
		return *e.Success, true
	case e.Status != nil:
		return *e.Status, true
	}
	return false, false
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBody)
	}
	return body, nil
}

// statusError turns a non-2xx response into the typed error for dir.
// A parseable message means the backend refused the request; anything
// else is a transport failure.
func statusError(dir models.Direction, status int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return &models.SubmissionError{Direction: dir, Message: env.Message}
	}
	return &models.TransportError{Direction: dir, Status: status}
}

// read performs an idempotent request, retrying transport failures and
// 5xx responses. The decoded body lands in out.
func (c *Client) read(ctx context.Context, name string, build func(context.Context) (*http.Request, error), out any) error {
	l := c.l.With("request", name)

	return retry.Do(func() error {
		req, err := build(ctx)
		if err != nil {
			return retry.Unrecoverable(err)
		}

		resp, err := c.client.Do(req)
		if errors.Is(err, session.ErrNoToken) {
			return retry.Unrecoverable(&models.TransportError{Err: err})
		}
		if err != nil {
			return &models.TransportError{Err: err}
		}
		defer resp.Body.Close()

		body, err := readBody(resp)
		if err != nil {
			return &models.TransportError{Status: resp.StatusCode, Err: err}
		}

		switch {
		case resp.StatusCode >= 500:
			return statusError("", resp.StatusCode, body)
		case resp.StatusCode >= 300:
			return retry.Unrecoverable(statusError("", resp.StatusCode, body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return retry.Unrecoverable(&models.TransportError{
				Status: resp.StatusCode,
				Err:    fmt.Errorf("decoding %s response: %w", name, err),
			})
		}
		return nil
	},
		retry.Attempts(c.readAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(c.retryDelay),
		retry.MaxJitter(c.retryDelay/5),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			l.Info("retrying request", "attempt", n+1, "err", err)
		}),
		retry.Context(ctx),
	)
}
