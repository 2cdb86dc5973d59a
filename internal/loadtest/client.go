package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a farmwatch instance.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// Health fetches /health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	resp, err := c.http.R().SetContext(ctx).SetResult(&h).Get("/health")
	if err != nil {
		return Health{}, fmt.Errorf("health request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Health{}, fmt.Errorf("health status %d", resp.StatusCode())
	}
	return h, nil
}

// Assess posts one reading to /calculate-risk.
func (c *Client) Assess(ctx context.Context, r Reading) (Response, error) {
	var out Response
	resp, err := c.http.R().SetContext(ctx).SetBody(r).SetResult(&out).Post("/calculate-risk")
	if err != nil {
		return Response{}, fmt.Errorf("assess request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Response{}, fmt.Errorf("assess status %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}
