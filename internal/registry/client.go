// Package registry is a typed HTTP client for the external service-registry
// API. It parses responses into concrete record types at the boundary and
// never retries on its own; callers decide whether a failed call is worth
// surfacing or skipping.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"registrybot/pkg/logx"
)

const maxErrorBodyLen = 512

type Client struct {
	base string
	http *http.Client
	log  logx.Logger
}

func New(baseURL string, timeout time.Duration, log logx.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Services returns the registered services keyed by service_key.
func (c *Client) Services(ctx context.Context) (map[string]Service, error) {
	var out map[string]Service
	if err := c.getJSON(ctx, "/services", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns the status-augmented records keyed by service_key.
func (c *Client) Status(ctx context.Context) (map[string]ServiceStatus, error) {
	var out struct {
		Services map[string]ServiceStatus `json:"services"`
	}
	if err := c.getJSON(ctx, "/status", nil, &out); err != nil {
		return nil, err
	}
	return out.Services, nil
}

// History returns up to limit recent transitions for one service,
// newest first (ordering owned by the registry).
func (c *Client) History(ctx context.Context, serviceKey string, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("service_key", serviceKey)
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.getJSON(ctx, "/state-history", q, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// PendingTransitions returns transitions not yet acknowledged as alerted.
func (c *Client) PendingTransitions(ctx context.Context) ([]Transition, error) {
	q := url.Values{}
	q.Set("only_not_alerted", "true")
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.getJSON(ctx, "/state-transitions", q, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// Configure mutates one service's settings (alerts flag, display name, metadata).
func (c *Client) Configure(ctx context.Context, req ConfigureRequest) error {
	if strings.TrimSpace(req.ServiceKey) == "" {
		return fmt.Errorf("registry: configure: service key is empty")
	}
	return c.postJSON(ctx, "/configure-service", req, nil)
}

// MarkAlerted acknowledges one transition. The registry treats this as
// idempotent; calling it twice for the same transition is harmless.
func (c *Client) MarkAlerted(ctx context.Context, t Transition) error {
	body := struct {
		ServiceKey   string `json:"service_key"`
		TransitionID string `json:"transition_id,omitempty"`
	}{ServiceKey: t.ServiceKey, TransitionID: t.ID}
	return c.postJSON(ctx, "/mark-alerted", body, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("registry: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("registry: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("registry: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	c.log.Debug("registry call",
		logx.String("method", req.Method),
		logx.String("path", req.URL.Path),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)))

	if resp.StatusCode/100 != 2 {
		return &HTTPError{Status: resp.StatusCode, Body: trimBody(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("registry: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen] + "…"
	}
	return s
}
