package hae

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// Client queries the Health Auto Export TCP server (JSON-RPC 2.0 over
// newline-delimited JSON). The server answers one request per connection
// and closes the socket afterwards, so every call dials anew.
type Client struct {
	addr    string
	timeout time.Duration

	// retryWait is the pause between reconnect probes after a failed call.
	retryWait time.Duration
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  callToolParams `json:"params"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DefaultPort is the HAE TCP server's default port.
const DefaultPort = 9000

const (
	queryAttempts = 3
	timeFormat    = "2006-01-02 15:04:05 -0700"
)

// NewClient creates a client for the HAE TCP server at host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		timeout:   120 * time.Second,
		retryWait: 3 * time.Second,
	}
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Ping checks that the server accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	return conn.Close()
}

// QueryWorkouts returns the raw workouts export for [start, end). The
// result decodes as a models.HAEPayload.
func (c *Client) QueryWorkouts(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	return c.callTool(ctx, "workouts", map[string]any{
		"start":           start.Format(timeFormat),
		"end":             end.Format(timeFormat),
		"includeMetadata": false,
		"includeRoutes":   false,
	})
}

// QueryWorkoutsWithRetry retries QueryWorkouts when the server drops the
// connection, which the HAE app does when it is backgrounded.
func (c *Client) QueryWorkoutsWithRetry(ctx context.Context, start, end time.Time, log *slog.Logger) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= queryAttempts; attempt++ {
		if attempt > 1 {
			log.Info("retrying workout query", "attempt", attempt)
			if err := c.waitForServer(ctx, log); err != nil {
				return nil, err
			}
		}
		result, err := c.QueryWorkouts(ctx, start, end)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn("workout query failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("querying workouts after %d attempts: %w", queryAttempts, lastErr)
}

// waitForServer polls until the server accepts connections again.
func (c *Client) waitForServer(ctx context.Context, log *slog.Logger) error {
	for i := 0; i < 10; i++ {
		if err := c.Ping(ctx); err == nil {
			return nil
		}
		log.Info("waiting for HAE server", "addr", c.addr, "probe", i+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryWait):
		}
	}
	return fmt.Errorf("HAE server %s did not come back", c.addr)
}

func (c *Client) callTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	reqData, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "callTool",
		Params:  callToolParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close() //nolint:errcheck

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	if _, err := conn.Write(append(reqData, '\n')); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	respData, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(respData) == 0 {
		return nil, fmt.Errorf("empty response from %s", c.addr)
	}

	var resp rpcResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("HAE error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}
