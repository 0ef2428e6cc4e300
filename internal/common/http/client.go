// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client is a small wrapper that pins a timeout onto outbound calls. The
// inference model client is its only consumer today.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DoWithContext sends the request under ctx; the client timeout still
// applies as an upper bound.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}
