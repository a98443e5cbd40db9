package api

import (
	"context"

	"github.com/deepai/deepai-client/pkg/user"
)

func (c *Client) ListUsers(ctx context.Context, q user.Query) ([]user.Info, int, error) {
	query := pageQuery(q.Page, q.Limit)
	setIf(query, "email", q.Email)
	setIf(query, "type", string(q.Type))

	p, err := get[page[user.Info]](ctx, c, "/user/get", query)
	if err != nil {
		return nil, 0, err
	}
	return p.unpack()
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := post[none](ctx, c, "/user/delete", map[string]string{"id": id})
	return err
}

// UpdateUser changes another user's account. Admins only.
func (c *Client) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	_, err := post[none](ctx, c, "/user/update", updatePayload{ID: id, Fields: fields})
	return err
}
