package api

import (
	"context"

	"github.com/spf13/cast"

	"github.com/deepai/deepai-client/pkg/image"
)

var _ image.API = (*Client)(nil)

// GenerateImage returns the URL of the rendered image.
func (c *Client) GenerateImage(ctx context.Context, req image.Request) (string, error) {
	data, err := post[any](ctx, c, "/text-to-image/generate", req)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(data)
}

func (c *Client) ListImages(ctx context.Context, iq image.Query) ([]image.Image, int, error) {
	q := pageQuery(iq.Page, iq.Limit)
	setIf(q, "term", iq.Term)

	p, err := get[page[image.Image]](ctx, c, "/text-to-image/get", q)
	if err != nil {
		return nil, 0, err
	}
	return p.unpack()
}
