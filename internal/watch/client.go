package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/eternal-chess/pkg/eternaldto"
	"github.com/valyala/fasthttp"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response from the read API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("read api error: status=%d body=%s", e.Code, e.Body)
}

// Client reads the eternal chess HTTP views.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
	sleep          func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
		sleep:          sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State(ctx context.Context) (*eternaldto.StateResponse, error) {
	var out eternaldto.StateResponse
	if _, err := c.get(ctx, "/api/state", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*eternaldto.Stats, error) {
	var out eternaldto.Stats
	if _, err := c.get(ctx, "/api/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Games(ctx context.Context) ([]eternaldto.GameRecord, error) {
	var out eternaldto.GameList
	if _, err := c.get(ctx, "/api/games", &out); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// GamePGN fetches the PGN of the n-th recorded game (1-based).
func (c *Client) GamePGN(ctx context.Context, n int) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/games/%d/pgn", n), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// get issues a GET with retry on transport errors and 5xx responses. When out
// is nil the raw body is returned.
func (c *Client) get(ctx context.Context, path string, out any) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			switch {
			case status >= 200 && status < 300:
				body := append([]byte(nil), resp.Body()...)
				if out != nil {
					if err := json.Unmarshal(body, out); err != nil {
						return nil, fmt.Errorf("decode response: %w", err)
					}
				}
				return body, nil
			case status == fasthttp.StatusNotFound:
				return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
			case !shouldRetryStatus(status):
				return nil, &StatusError{Code: status, Body: truncate(string(resp.Body()), 512)}
			}
			err = &StatusError{Code: status, Body: truncate(string(resp.Body()), 512)}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := c.sleep(ctx, backoffDuration(attempt)); sleepErr != nil {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("request failed: %w", lastErr)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
