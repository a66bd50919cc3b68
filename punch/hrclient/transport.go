package hrclient

import (
	"net/http"

	"fieldops.dev/punchclock/session"
)

// AuthTransport attaches the session token and marks every request as
// a programmatic call, which the backend answers with JSON instead of a
// login redirect.
type AuthTransport struct {
	Tokens session.TokenSource
	Base   http.RoundTripper
}

func (t AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Tokens.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	// a RoundTripper must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
