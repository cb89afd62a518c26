package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mbd888/teller/internal/retry"
)

// Client calls an external advisory service over HTTP. The wire contract
// is a POST of the request JSON answered by
// {"success": bool, "message": string, "data": object}.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

type wireResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

// NewClient creates an advisory client. A zero timeout falls back to the
// default.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:     url,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Advise posts the request to the advisory service. A non-success payload
// is an error so the caller falls back locally.
func (c *Client) Advise(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal advisory request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var wire wireResponse
	err = retry.Do(ctx, 2, 200*time.Millisecond, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("advisory service returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("advisory service returned status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode advisory response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !wire.Success {
		if wire.Error != "" {
			return nil, fmt.Errorf("advisory service failed: %s", wire.Error)
		}
		return nil, fmt.Errorf("advisory service reported failure")
	}

	return &Result{
		Message: wire.Message,
		Data:    wire.Data,
		Source:  SourceExternal,
	}, nil
}
