package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/grovetools/release-plz-go/internal/apperrors"
	"github.com/grovetools/release-plz-go/internal/httpretry"
)

// httpBackend is the shared request/response plumbing every forge
// backend composes: base URL, auth header, and a retrying transport.
type httpBackend struct {
	baseURL    string
	authHeader string // e.g. "Authorization", "PRIVATE-TOKEN"
	authValue  string
	client     *http.Client
}

func newHTTPBackend(baseURL, authHeader, authValue string, client *http.Client) httpBackend {
	if client == nil {
		client = &http.Client{Transport: httpretry.New(nil)}
	}
	return httpBackend{baseURL: strings.TrimRight(baseURL, "/"), authHeader: authHeader, authValue: authValue, client: client}
}

// do issues method against path (joined to baseURL), encoding body as
// JSON when non-nil and decoding the response into out when non-nil. A
// 4xx/5xx response surfaces its body per spec.md §7; a 403 is annotated
// with apperrors.ErrForbidden as a hint about token permissions.
func (b httpBackend) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("forge: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("forge: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.authValue != "" {
		req.Header.Set(b.authHeader, b.authValue)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forge: %w: %s %s: %v", apperrors.ErrForgeRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("forge: read response body: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return resp, fmt.Errorf("forge: %w: %s %s: %s", apperrors.ErrForbidden, method, path, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return resp, fmt.Errorf("forge: %w: %s %s returned %d: %s", apperrors.ErrForgeRequestFailed, method, path, resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp, fmt.Errorf("forge: decode response from %s: %w", path, err)
		}
	}
	return resp, nil
}
