package api

import (
	"context"
	"net/http"
	"net/url"
)

// Token exchanges a username and password for a bearer token (OAuth2 password grant).
func (c *Client) Token(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	var out TokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/token", form: form, fallback: "Invalid credentials"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the profile of the user owning the current token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", auth: true, fallback: "Invalid credentials"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
