// Package api is the HTTP client for the booking backend.  It covers
// the full external interface the engine consumes: seat availability
// snapshots, the hold/confirm/cancel mutations, the user's reservation
// list, and the read-only catalog endpoints.  The backend is
// authoritative; this package only transports its decisions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cinebook/seatsync/internal/model"
)

// Error is a structured rejection returned by the backend: the request
// reached the server and the server said no.  Transport-level failures
// (timeouts, connection resets) are returned as plain wrapped errors
// instead, so callers can tell the two apart with errors.As.
//
// Fields:
//  StatusCode  – HTTP status of the rejection.
//  Message     – human-readable reason supplied by the server.
//  Unavailable – for hold rejections, the positions that were taken.
type Error struct {
	StatusCode  int
	Message     string
	Unavailable []model.SeatPosition
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: server rejected request (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to one booking backend.  It is safe for concurrent use;
// the bearer token may be swapped at any time after a login.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient returns a client for the backend at baseURL.  A zero
// timeout falls back to ten seconds so a hung backend cannot wedge the
// session's event loop indefinitely.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// SetToken stores the bearer token attached to every subsequent
// request.  An empty token sends requests unauthenticated.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// do performs one JSON round trip.  A non-2xx response is decoded into
// an *Error; anything that fails before a response arrives is wrapped
// and returned as a transport failure.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRejection(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeRejection(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	var body struct {
		Message     string               `json:"message"`
		Unavailable []model.SeatPosition `json:"unavailable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.Unavailable = body.Unavailable
	}
	return apiErr
}
