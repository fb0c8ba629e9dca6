package control

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a running launcher's control server.
type Client struct {
	http *resty.Client
}

type errorBody struct {
	Error string `json:"error"`
}

// NewClient targets bind, an address such as 127.0.0.1:40480. It returns
// ErrUnavailable for an empty bind.
func NewClient(bind string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http: resty.New().SetBaseURL(bind).SetTimeout(timeout),
	}, nil
}

// Activate asks the running launcher to relaunch whatever is missing.
func (c *Client) Activate(ctx context.Context) (ActivateResponse, error) {
	var out ActivateResponse
	var failure errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&failure).
		Post("/activate")
	if err != nil {
		return out, unavailable(err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("activate: %s: %s", resp.Status(), failure.Error)
	}
	return out, nil
}

// Status fetches the running launcher's state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	var failure errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&failure).
		Get("/state")
	if err != nil {
		return out, unavailable(err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("state: %s: %s", resp.Status(), failure.Error)
	}
	return out, nil
}

// unavailable marks transport failures; nothing is listening or it hung.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
