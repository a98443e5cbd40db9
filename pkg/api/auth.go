package api

import (
	"context"

	"github.com/deepai/deepai-client/pkg/auth"
	"github.com/deepai/deepai-client/pkg/user"
)

var (
	_ auth.API = (*Client)(nil)
	_ user.API = (*Client)(nil)
)

// Login posts the credentials as multipart form fields.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Token, error) {
	return post[auth.Token](ctx, c, "/auth/token", formBody{"username": username, "password": password})
}

// Session returns the signed-in user.
func (c *Client) Session(ctx context.Context) (user.Info, error) {
	return get[user.Info](ctx, c, "/auth/user", nil)
}

func (c *Client) Register(ctx context.Context, email, password string, code int) error {
	_, err := post[none](ctx, c, "/auth/register", map[string]any{
		"email":             email,
		"password":          password,
		"verification_code": code,
	})
	return err
}

func (c *Client) SendVerificationCode(ctx context.Context, recipient string) error {
	_, err := post[none](ctx, c, "/auth/send-verification-code", map[string]string{"recipient": recipient})
	return err
}

// UpdatePersonalInfo changes the signed-in user's own profile.
func (c *Client) UpdatePersonalInfo(ctx context.Context, id string, fields map[string]any) error {
	_, err := post[none](ctx, c, "/auth/update", updatePayload{ID: id, Fields: fields})
	return err
}

// CreateAccount creates a user and returns its generated credentials.
func (c *Client) CreateAccount(ctx context.Context, email string) (user.Account, error) {
	return post[user.Account](ctx, c, "/auth/user", map[string]string{"email": email})
}
