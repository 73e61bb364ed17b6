package api

import (
	"context"
	"net/http"
)

// Health checks whether the server is up and ready. A nil return means
// healthy; any error (connection refused during a restart, non-2xx, bad
// payload) means not ready yet.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return err
	}
	return nil
}

// Healthy is a convenience wrapper for poll loops.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.Health(ctx) == nil
}
