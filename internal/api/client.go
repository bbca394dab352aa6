package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnavailable means the daemon API could not be reached.
var ErrUnavailable = errors.New("daemon API unavailable")

// StatusError is a non-2xx reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Message)
}

// Client calls the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// LogQuery selects log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	SessionID string
}

// NewClient returns a client for the daemon bound at bind. A nil client is
// returned for an empty bind; its calls report ErrUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - follow mode blocks waiting for events until caller cancels.
		http: &http.Client{},
	}, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Devices fetches the scored local catalog.
func (c *Client) Devices(ctx context.Context) (DevicesResponse, error) {
	var out DevicesResponse
	err := c.do(ctx, http.MethodGet, "/api/devices", nil, nil, &out)
	return out, err
}

// Preference fetches the stored camera.
func (c *Client) Preference(ctx context.Context) (PreferenceResponse, error) {
	var out PreferenceResponse
	err := c.do(ctx, http.MethodGet, "/api/preference", nil, nil, &out)
	return out, err
}

// SetPreference stores id as the preferred camera.
func (c *Client) SetPreference(ctx context.Context, id string) (PreferenceResponse, error) {
	var out PreferenceResponse
	err := c.do(ctx, http.MethodPut, "/api/preference", nil, PreferenceRequest{DeviceID: id}, &out)
	return out, err
}

// ClearPreference deletes the stored camera.
func (c *Client) ClearPreference(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/preference", nil, nil, nil)
}

// Logs fetches log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.SessionID) != "" {
		values.Set("session", q.SessionID)
	}
	var out LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// IsUnavailable reports whether err means the daemon is not reachable.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
