package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

const maxAttempts = 3

// statusError is a non-2xx response from the server.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.status, e.body)
}

// retryable reports whether another attempt may succeed.
func (e *statusError) retryable() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests || e.status == http.StatusRequestTimeout
}

// Client pushes documents to a treningslogg server's sync endpoints.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client

	// backoff is the wait before the second attempt; it doubles after that.
	backoff time.Duration
}

// NewClient creates a new sync client for the server at serverURL.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL:  serverURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		backoff:    time.Second,
	}
}

// PutSession stores a session under its id. It reports false when the
// server already holds the session's external id under another session.
func (c *Client) PutSession(ctx context.Context, s models.WorkoutSession) (bool, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("marshaling session: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/v1/sync/sessions/"+s.ID.String(), body)
	if err != nil {
		return false, err
	}
	var out struct {
		Stored bool `json:"stored"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return false, fmt.Errorf("decoding sync response: %w", err)
	}
	return out.Stored, nil
}

// PutTemplate stores a template under its id.
func (c *Client) PutTemplate(ctx context.Context, t models.WorkoutTemplate) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling template: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/api/v1/sync/templates/"+t.ID.String(), body)
	return err
}

// DeleteTemplate removes a template. A template the server does not know
// counts as deleted.
func (c *Client) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/sync/templates/"+id.String(), nil)
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusNotFound {
		return nil
	}
	return err
}

// do sends a request, retrying transport errors and 5xx responses up to
// three times with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		respBody, err := c.send(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%s %s after %d attempts: %w", method, path, maxAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(respBody))}
	}
	return respBody, nil
}
