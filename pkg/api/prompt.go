package api

import (
	"context"
	"net/url"

	"github.com/deepai/deepai-client/pkg/prompt"
)

var _ prompt.API = (*Client)(nil)

// promptPage is the one paged payload that names its records "prompts".
type promptPage struct {
	Prompts []prompt.Prompt `json:"prompts"`
	Total   any             `json:"total"`
}

func (c *Client) ListPrompts(ctx context.Context, term string) ([]prompt.Prompt, error) {
	q := url.Values{}
	setIf(q, "term", term)
	return get[[]prompt.Prompt](ctx, c, "/prompt/all", q)
}

func (c *Client) PromptsByPage(ctx context.Context, pq prompt.Query) ([]prompt.Prompt, int, error) {
	q := pageQuery(pq.Page, pq.Limit)
	if pq.IncludeDisabled {
		q.Set("is_enabled", "0")
	} else {
		q.Set("is_enabled", "1")
	}
	setIf(q, "category", pq.Category)
	setIf(q, "term", pq.Term)

	p, err := get[promptPage](ctx, c, "/prompt/get", q)
	if err != nil {
		return nil, 0, err
	}
	return page[prompt.Prompt]{Records: p.Prompts, Total: p.Total}.unpack()
}

func (c *Client) CreatePrompt(ctx context.Context, p prompt.Prompt) (prompt.Prompt, error) {
	return post[prompt.Prompt](ctx, c, "/prompt/create", p)
}

func (c *Client) BulkInsertPrompts(ctx context.Context, prompts []prompt.Prompt) error {
	_, err := post[none](ctx, c, "/prompt/bulk-insert", prompts)
	return err
}

func (c *Client) UpdatePrompt(ctx context.Context, id string, fields map[string]any) (prompt.Prompt, error) {
	return post[prompt.Prompt](ctx, c, "/prompt/update", updatePayload{ID: id, Fields: fields})
}

func (c *Client) LikePrompt(ctx context.Context, id string, like bool) (prompt.Prompt, error) {
	return post[prompt.Prompt](ctx, c, "/prompt/likes", map[string]any{"id": id, "likes": like})
}

func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	_, err := post[none](ctx, c, "/prompt/delete", map[string]string{"id": id})
	return err
}

func (c *Client) TogglePrompt(ctx context.Context, id string, enabled bool) error {
	_, err := post[none](ctx, c, "/prompt/toggle", map[string]any{"id": id, "is_enabled": enabled})
	return err
}
