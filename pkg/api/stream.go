package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ProgressFunc receives everything received so far, not the latest chunk.
// Successive calls carry monotonically growing text.
type ProgressFunc func(text string)

const streamChunk = 4096

// Stream posts payload to a streaming endpoint and reports the cumulative
// response text through progress after every chunk. It returns the full text.
// Canceling ctx aborts the transfer with ErrCanceled.
func (c *Client) Stream(ctx context.Context, path string, payload any, progress ProgressFunc) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return "", err
	}
	resp, err := c.send(ctx, c.http, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", c.checkStatus(resp, body)
	}

	var (
		text     []byte
		reported int
		buf      = make([]byte, streamChunk)
	)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			text = append(text, buf[:n]...)
			if end := complete(text); end > reported && progress != nil {
				reported = end
				progress(string(text[:end]))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			partial := string(text[:complete(text)])
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return partial, ErrCanceled
			}
			return partial, err
		}
	}

	out := string(text)
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := c.streamEnvelope(out); err != nil {
			return "", err
		}
	}
	return out, nil
}

// streamEnvelope reports a failure envelope sent in place of a text reply.
func (c *Client) streamEnvelope(body string) error {
	var env envelope
	if json.Unmarshal([]byte(body), &env) != nil {
		return nil
	}
	switch env.Status {
	case "", StatusSuccess:
		return nil
	case StatusUnauthorized:
		return c.unauthorized()
	default:
		return &Error{Status: env.Status, Message: env.message(), HTTPStatus: http.StatusOK}
	}
}

// complete returns the length of b without a trailing partial UTF-8
// sequence, so a snapshot never ends mid-character.
func complete(b []byte) int {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if utf8.RuneStart(b[start]) {
			if utf8.FullRune(b[start:]) {
				return len(b)
			}
			return start
		}
	}
	return len(b)
}
