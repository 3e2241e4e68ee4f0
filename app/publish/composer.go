package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ComposeRequest is the high-level "compose post" call the secondary social
// feed exposes.
type ComposeRequest struct {
	Author     string            `json:"author"`
	Body       string            `json:"body"`
	MediaURLs  []string          `json:"media_urls,omitempty"`
	Visibility string            `json:"visibility"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Composer is the high-level cross-post path. Implementations return the
// created post's identifier.
type Composer interface {
	Compose(ctx context.Context, req ComposeRequest) (string, error)
}

type composeResponse struct {
	ID string `json:"id"`
}

// HTTPComposer calls the social feed's compose endpoint.
type HTTPComposer struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	timeout    time.Duration
}

func NewHTTPComposer(httpClient *http.Client, endpoint, userAgent string, timeout time.Duration) *HTTPComposer {
	return &HTTPComposer{
		httpClient: httpClient,
		endpoint:   endpoint,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (c *HTTPComposer) Compose(ctx context.Context, composeReq ComposeRequest) (string, error) {
	payload, err := json.Marshal(composeReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal compose request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call compose endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read compose response: %w", err)
	}

	var composed composeResponse
	if err := json.Unmarshal(body, &composed); err != nil {
		return "", fmt.Errorf("failed to parse compose response: %w", err)
	}
	if composed.ID == "" {
		return "", fmt.Errorf("compose response has no post id")
	}

	return composed.ID, nil
}
