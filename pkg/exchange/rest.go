package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout caps the venue round-trip. Exceeding it surfaces as a
// transport error rather than hanging the request.
const DefaultTimeout = 30 * time.Second

type restClient struct {
	baseURL string
	http    *http.Client
}

func newRestClient(baseURL string, timeout time.Duration) *restClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &restClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// post sends a JSON payload and returns the raw response body. Non-2xx
// replies become *APIError carrying the venue's status and body. When out
// is non-nil the body is also unmarshaled into it.
func (c *restClient) post(ctx context.Context, path string, payload any, out any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("venue request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read venue response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: respBody}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("failed to decode venue response: %w", err)
		}
	}

	return respBody, nil
}
