package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultCompanionTimeout bounds every companion call.
const DefaultCompanionTimeout = 4 * time.Second

// Companion is a client for the read-only HTTP service the companion plugin
// exposes inside the agent platform.
type Companion struct {
	http    *resty.Client
	baseURL string
	timeout time.Duration
}

// NewCompanion creates a client for baseURL.
func NewCompanion(baseURL string, timeout time.Duration) *Companion {
	if timeout <= 0 {
		timeout = DefaultCompanionTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Companion{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		baseURL: baseURL,
		timeout: timeout,
	}
}

// BaseURL returns the service root.
func (c *Companion) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-call bound.
func (c *Companion) Timeout() time.Duration {
	return c.timeout
}

// GetJSON fetches path and decodes the JSON body into out. Any non-2xx
// status is an error.
func (c *Companion) GetJSON(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		ForceContentType("application/json").
		Get(path)
	if err != nil {
		return fmt.Errorf("companion GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("companion GET %s: status %d", path, resp.StatusCode())
	}
	return nil
}

// Ping reports whether the companion answers its health endpoint.
func (c *Companion) Ping(ctx context.Context) bool {
	var out map[string]any
	return c.GetJSON(ctx, "/health", nil, &out) == nil
}
