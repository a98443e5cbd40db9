package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/google/uuid"

	"github.com/deepai/deepai-client/pkg/auth"
)

const refreshPath = "/auth/refresh-access-token"

// authTransport adds the bearer token and a request id to every request.
// A 401 triggers one token refresh and one replay of the request.
type authTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.client.creds.Token()
	req = authorize(req, token)

	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if t.client.creds.RefreshToken() == "" {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Body already consumed and cannot be replayed.
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := t.client.refresh(req.Context(), token); err != nil {
		slog.Warn("failed to refresh access token", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
		retry.Body = body
	}
	slog.Debug("replaying request after token refresh", "url", req.URL.String(), "request_id", req.Header.Get("X-Request-ID"))
	return t.base.RoundTrip(authorize(retry, t.client.creds.Token()))
}

// authorize returns a copy of req carrying the token and a request id.
func authorize(req *http.Request, token string) *http.Request {
	req = req.Clone(req.Context())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	return req
}

// refresh exchanges the refresh token for a new pair. Concurrent callers
// share one exchange, and a caller whose token was already replaced skips it.
func (c *Client) refresh(ctx context.Context, stale string) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		if cur := c.creds.Token(); cur != "" && cur != stale {
			return nil, nil
		}
		rt := c.creds.RefreshToken()
		if rt == "" {
			return nil, errors.New("no refresh token")
		}

		req, err := c.newRequest(ctx, http.MethodPost, refreshPath, nil, map[string]string{"refresh_token": rt})
		if err != nil {
			return nil, err
		}
		resp, err := c.send(ctx, c.plain, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read refresh response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &Error{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		tok, err := decode[auth.Token](c, body)
		if err != nil {
			return nil, err
		}
		if tok.AccessToken == "" {
			return nil, errors.New("refresh response carried no access token")
		}
		return nil, c.creds.SetTokens(tok.AccessToken, tok.RefreshToken)
	})
	return err
}

// loggingTransport dumps traffic when LevelTrace is enabled.
type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	// Dump request
	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		slog.Debug("Failed to dump request", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "REST Request", "url", req.URL.String(), "dump", redact(string(reqDump)))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Dump response
	// Chat replies stream as plain text; dumping the body would buffer it.
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	respDump, err := httputil.DumpResponse(resp, isJSON)
	if err != nil {
		slog.Debug("Failed to dump response", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "REST Response", "status", resp.StatusCode, "dump", string(respDump))
	}

	return resp, nil
}

// redact hides the bearer token in a request dump.
func redact(dump string) string {
	const prefix = "Authorization: Bearer "
	i := strings.Index(dump, prefix)
	if i == -1 {
		return dump
	}
	end := strings.Index(dump[i:], "\r\n")
	if end == -1 {
		end = len(dump) - i
	}
	return dump[:i] + prefix + "***" + dump[i+end:]
}
