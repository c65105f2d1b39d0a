package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a non-200 reply from a generation endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("generation endpoint returned %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("generation endpoint returned %d: %s", e.StatusCode, e.Message)
}

// Client calls a remote generation endpoint over HTTP. It implements
// Generator, so callers can swap it for an in-process Service.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client for the endpoint URL (for example
// http://localhost:8080/api/generate). A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("reading generation response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: httpResp.StatusCode}
		var e ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Details = e.Error, e.Details
		} else {
			apiErr.Message = http.StatusText(httpResp.StatusCode)
		}
		return "", apiErr
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decoding generation response: %w", err)
	}
	return resp.HTML, nil
}
