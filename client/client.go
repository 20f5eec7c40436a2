// Package client provides a typed HTTP client for the Taarifa notification API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lamiedu/taarifa/core/notification"
)

const defaultTimeout = 15 * time.Second

type (
	// NetworkError means the request never produced an HTTP response:
	// connection refused, DNS failure, timeout, canceled context.
	NetworkError struct {
		Err error
	}

	// ServerError is a non-2xx response, carrying the API's message envelope.
	ServerError struct {
		StatusCode int
		Message    string
	}

	// DecodeError means the server answered 2xx but the body did not match
	// the expected envelope.
	DecodeError struct {
		Err error
	}
)

func (e *NetworkError) Error() string { return "notification API unreachable: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notification API error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("notification API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *DecodeError) Error() string { return "decoding notification API response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

func IsNetworkError(err error) bool {
	_, ok := errors.Cause(err).(*NetworkError)
	return ok
}

func IsServerError(err error) bool {
	_, ok := errors.Cause(err).(*ServerError)
	return ok
}

// Client calls the notification API on behalf of one authenticated recipient.
// The zero value is not usable; use NewClient.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient ...*http.Client) *Client {
	hc := &http.Client{Timeout: defaultTimeout}
	if len(httpClient) > 0 && httpClient[0] != nil {
		hc = httpClient[0]
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    hc,
	}
}

// FetchList returns the recipient's notifications, newest first.
func (c *Client) FetchList(ctx context.Context) ([]notification.Notification, error) {
	var notifs []notification.Notification
	if err := c.do(ctx, http.MethodGet, "/v1/notifications", nil, &notifs); err != nil {
		return nil, err
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return notifs, nil
}

// FetchUnreadCount returns the recipient's unread total.
func (c *Client) FetchUnreadCount(ctx context.Context) (int, error) {
	var data struct {
		Total int `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/notifications/count", nil, &data); err != nil {
		return 0, err
	}
	return data.Total, nil
}

// Create publishes a notification. Requires an admin token.
func (c *Client) Create(ctx context.Context, nn notification.NewNotification) (notification.Notification, error) {
	var created notification.Notification
	if err := c.do(ctx, http.MethodPost, "/v1/notifications", nn, &created); err != nil {
		return notification.Notification{}, err
	}
	return created, nil
}

// MarkRead marks a single notification read. Marking an already-read or
// missing notification succeeds.
func (c *Client) MarkRead(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPatch, "/v1/notifications/"+strconv.Itoa(id)+"/read", nil, nil)
}

// MarkAllRead marks every unread notification read and reports how many
// were touched.
func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var data struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/notifications/read-all", nil, &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

// Delete removes a notification. Deleting a missing notification succeeds.
func (c *Client) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/v1/notifications/"+strconv.Itoa(id), nil, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message json.RawMessage `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close() // nolint

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	var env envelope
	if err = json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			// non-JSON error bodies (proxies, panics) still become ServerError
			return &ServerError{StatusCode: resp.StatusCode}
		}
		return &DecodeError{Err: err}
	}

	if resp.StatusCode >= 400 || !env.Success {
		return &ServerError{StatusCode: resp.StatusCode, Message: messageText(env.Message)}
	}

	if out != nil {
		if err = json.Unmarshal(env.Data, out); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}

// messageText flattens the error envelope's message, which is either a plain
// string or a {field: error} map for validation failures.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var flds map[string]string
	if err := json.Unmarshal(raw, &flds); err == nil {
		var b bytes.Buffer
		for fld, msg := range flds {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(fld + ": " + msg)
		}
		return b.String()
	}
	return string(raw)
}
