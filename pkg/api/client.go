// Package api talks to the DeepAI backend over HTTP.
//
// Every JSON endpoint answers with the envelope {data, message, status}.
// Streaming chat endpoints answer with plain text that grows as the model
// writes; Client.Stream exposes it as successive cumulative snapshots.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// LevelTrace is a custom log level for detailed HTTP traffic.
const LevelTrace = slog.Level(-8)

// Credentials supplies and stores the bearer and refresh tokens.
type Credentials interface {
	Token() string
	RefreshToken() string
	SetTokens(access, refresh string) error
	RemoveToken() error
}

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	// plain sends requests without the refresh-on-401 logic.
	plain *http.Client

	creds          Credentials
	onUnauthorized func()
	refreshGroup   singleflight.Group
}

type Option func(*Client)

// WithTimeout bounds every request. Zero, the default, means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
		c.plain.Timeout = d
	}
}

// WithUnauthorizedHandler is called after an Unauthorized envelope clears the token.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithBaseTransport replaces the underlying RoundTripper.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.plain.Transport = &loggingTransport{base: rt}
		c.http.Transport = &authTransport{base: c.plain.Transport, client: c}
	}
}

func New(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if creds == nil {
		return nil, errors.New("credentials are required")
	}

	c := &Client{
		baseURL:        u,
		creds:          creds,
		onUnauthorized: func() {},
	}
	c.plain = &http.Client{Transport: &loggingTransport{base: http.DefaultTransport}}
	c.http = &http.Client{Transport: &authTransport{base: c.plain.Transport, client: c}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// formBody is a multipart/form-data request body.
type formBody map[string]string

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case formBody:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range b {
			if err := w.WriteField(k, v); err != nil {
				return nil, fmt.Errorf("failed to write form field: %w", err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close form: %w", err)
		}
		reader = &buf
		contentType = w.FormDataContentType()
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	return req, nil
}

// send performs the request and maps transport-level failures.
func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, ErrCanceled
		}
		if errors.Is(err, ErrAuthRequired) {
			return nil, ErrAuthRequired
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// do runs a JSON endpoint and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, c.http, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrCanceled
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := c.checkStatus(resp, data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkStatus turns a non-2xx response into an error.
func (c *Client) checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthRequired
	}
	apiErr := &Error{HTTPStatus: resp.StatusCode}
	var env envelope
	if json.Unmarshal(body, &env) == nil {
		apiErr.Status = env.Status
		apiErr.Message = env.message()
		if apiErr.Message == "" {
			apiErr.Message = env.Detail
		}
	}
	if env.Status == StatusUnauthorized {
		return c.unauthorized()
	}
	return apiErr
}

// unauthorized clears the bearer token and hands control to the front end.
func (c *Client) unauthorized() error {
	if err := c.creds.RemoveToken(); err != nil {
		slog.Error("failed to remove token", "error", err)
	}
	c.onUnauthorized()
	return ErrUnauthorized
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message *string         `json:"message"`
	Status  Status          `json:"status"`
	Detail  string          `json:"detail"` // Framework-level errors
}

func (e envelope) message() string {
	if e.Message == nil {
		return ""
	}
	return *e.Message
}

// decode unwraps an envelope into T. A body that is not an envelope is
// decoded into T as is, which covers raw token bodies and plain strings.
func decode[T any](c *Client, body []byte) (T, error) {
	var zero T

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Status == "" {
		return decodeRaw[T](body)
	}

	switch env.Status {
	case StatusSuccess:
	case StatusUnauthorized:
		return zero, c.unauthorized()
	default:
		return zero, &Error{Status: env.Status, Message: env.message(), HTTPStatus: http.StatusOK}
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("failed to decode response data: %w", err)
	}
	return out, nil
}

func decodeRaw[T any](body []byte) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err == nil {
		return out, nil
	}
	// Plain text body for a string or ignored result.
	switch p := any(&out).(type) {
	case *string:
		*p = string(body)
		return out, nil
	case *json.RawMessage:
		*p = append((*p)[:0], body...)
		return out, nil
	}
	return out, fmt.Errorf("unexpected response body: %.100q", body)
}

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](c, body)
}

func post[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	body, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](c, body)
}

func call[T any](ctx context.Context, c *Client, method, path string) (T, error) {
	body, err := c.do(ctx, method, path, nil, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](c, body)
}

// none is the result type of endpoints whose data is ignored.
type none = json.RawMessage
