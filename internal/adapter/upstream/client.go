// Package upstream submits committed transactions to the reconciliation
// ledger over HTTP.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"offline-payment-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.UpstreamClient as a JSON POST to one endpoint.
type Client struct {
	endpoint   string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates an upstream client. A nil httpClient gets a plain
// *http.Client with the given timeout.
func NewClient(endpoint string, httpClient HTTPClient, timeout time.Duration, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		log:        log.With().Str("component", "upstream").Logger(),
	}
}

// Submit posts sub and maps the response. 409 and 422 mean upstream refused
// the submission for good and wrap ports.ErrUpstreamRejected.
func (c *Client) Submit(ctx context.Context, sub ports.UpstreamSubmission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshaling submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Nonce", sub.Nonce)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.log.Debug().Str("nonce", sub.Nonce).Int("status", resp.StatusCode).Msg("submission accepted")
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch resp.StatusCode {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(detail), ports.ErrUpstreamRejected)
	default:
		return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
}
