package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
	"github.com/claude/treningslogg/internal/reconcile"
)

// HTTPClient implements DataSource by calling the treningslogg REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// resolves the user from the connection, so userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// errNotFound marks a 404 from the server.
var errNotFound = errors.New("not found")

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	return c.do(req, path)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("httpclient: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

func (c *HTTPClient) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, errNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func categoryParams(category *models.Category) url.Values {
	v := url.Values{}
	if category != nil {
		v.Set("category", string(*category))
	}
	return v
}

func (c *HTTPClient) ListTemplates(ctx context.Context, _ int, category *models.Category) ([]models.WorkoutTemplate, error) {
	body, err := c.get(ctx, "/api/v1/templates", categoryParams(category))
	if err != nil {
		return nil, err
	}

	var templates []models.WorkoutTemplate
	if err := json.Unmarshal(body, &templates); err != nil {
		return nil, fmt.Errorf("httpclient: decode templates: %w", err)
	}
	return templates, nil
}

// LastExercise returns nil, nil when the server has no such exercise.
func (c *HTTPClient) LastExercise(ctx context.Context, _ int, category *models.Category, name string) (*models.Exercise, error) {
	params := categoryParams(category)
	params.Set("name", name)

	body, err := c.get(ctx, "/api/v1/exercises/last", params)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e models.Exercise
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("httpclient: decode exercise: %w", err)
	}
	return &e, nil
}

func (c *HTTPClient) StartDraft(ctx context.Context, _ int, req logbook.DraftRequest) (reconcile.Draft, error) {
	body, err := c.post(ctx, "/api/v1/drafts", req)
	if err != nil {
		return reconcile.Draft{}, err
	}

	var d reconcile.Draft
	if err := json.Unmarshal(body, &d); err != nil {
		return reconcile.Draft{}, fmt.Errorf("httpclient: decode draft: %w", err)
	}
	return d, nil
}

func (c *HTTPClient) Sessions(ctx context.Context, _ int, filter models.SessionFilter) ([]models.WorkoutSession, error) {
	params := categoryParams(filter.Category)
	if !filter.Start.IsZero() {
		params.Set("start", filter.Start.Format(time.RFC3339))
	}
	if !filter.End.IsZero() {
		params.Set("end", filter.End.Format(time.RFC3339))
	}

	body, err := c.get(ctx, "/api/v1/sessions", params)
	if err != nil {
		return nil, err
	}

	var sessions []models.WorkoutSession
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("httpclient: decode sessions: %w", err)
	}
	return sessions, nil
}

func (c *HTTPClient) Statistics(ctx context.Context, _ int) (string, error) {
	body, err := c.get(ctx, "/api/v1/statistics", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
