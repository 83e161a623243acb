// Package httpretry wraps an http.RoundTripper with exponential backoff
// over 429/5xx responses, used by every internal/forge backend and
// internal/registry's sparse-index client (spec.md §6/§7's retry
// requirements).
//
// The backoff shape (exponential, capped, bounded attempt count) is
// grounded on the teacher's pkg/release/wait.go polling loop; here it
// retries individual HTTP round trips instead of polling an external
// state change.
package httpretry

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

// Transport retries requests whose response status is 429 or 5xx, or
// that fail with a transport-level error, up to MaxAttempts times with
// exponential backoff between attempts.
type Transport struct {
	Base           http.RoundTripper
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// New returns a Transport wrapping base (http.DefaultTransport if nil)
// with sane defaults: 3 attempts, starting at 500ms, capped at 5s.
func New(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base:           base,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	backoff := t.InitialBackoff
	var resp *http.Response
	var err error

	for attempt := 1; attempt <= t.MaxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err = t.Base.RoundTrip(req)
		if err == nil && !shouldRetry(resp.StatusCode) {
			return resp, nil
		}
		if attempt == t.MaxAttempts {
			break
		}

		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > t.MaxBackoff {
			backoff = t.MaxBackoff
		}
	}

	return resp, err
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
