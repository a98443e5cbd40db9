package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/deepai/deepai-client/pkg/store"
)

var _ store.HistoryAPI = (*Client)(nil)

// CreateSessionMeta registers a session. Server-owned fields are not sent.
func (c *Client) CreateSessionMeta(ctx context.Context, s store.Session) (store.Session, error) {
	s.ID = ""
	s.UserID = ""
	return post[store.Session](ctx, c, "/chat-history-meta/create", s)
}

func (c *Client) UpdateSessionMeta(ctx context.Context, id string, fields map[string]any) (store.Session, error) {
	return post[store.Session](ctx, c, "/chat-history-meta/update", updatePayload{ID: id, Fields: fields})
}

func (c *Client) DeleteSessionMeta(ctx context.Context, id string) error {
	_, err := post[none](ctx, c, "/chat-history-meta/delete", map[string]string{"id": id})
	return err
}

func (c *Client) DeleteSessionMetaByTitle(ctx context.Context, title string) error {
	_, err := post[none](ctx, c, "/chat-history-meta/delete", map[string]string{"title": title})
	return err
}

// ListSessionMeta passes the modes as one comma separated ai_modes parameter.
func (c *Client) ListSessionMeta(ctx context.Context, modes []store.AiMode) ([]store.Session, error) {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	q := url.Values{"ai_modes": {strings.Join(names, ",")}}
	sessions, err := get[[]store.Session](ctx, c, "/chat-history-meta/query-with-ai-modes", q)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return sessions, nil
}

// updatePayload is the {id, fields} body shared by every update endpoint.
type updatePayload struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}
