// Package fetch retrieves a patient's raw clinical-data bundle from their
// FHIR endpoint. It is the external collaborator handing off into session
// creation; the orchestration core only ever sees the returned bytes.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fetches FHIR bundles with basic authentication.
type Client struct {
	username string
	password string
	http     *http.Client
}

// New constructs a fetch client. timeout bounds each request.
func New(username, password string, timeout time.Duration) *Client {
	return &Client{
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

// Bundle performs an authenticated GET of the endpoint and returns the raw
// bundle bytes. The caller decides how to reduce them.
func (c *Client) Bundle(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	return body, nil
}
