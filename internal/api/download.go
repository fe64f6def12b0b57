package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Download streams an artefact (recording or generated script) into w.
// Relative URLs are resolved against the backend's scheme and host.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) error {
	target, err := c.resolveArtefact(rawURL)
	if err != nil {
		return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: err}
	}
	if c.sameOrigin(req.URL) {
		if token, err := c.tokens.Token(ctx); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, call{method: http.MethodGet, path: target}, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return serverError(resp.StatusCode, body, "Failed to download file")
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: fmt.Errorf("writing download: %w", err)}
	}
	return nil
}

func (c *Client) resolveArtefact(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing artefact URL: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// sameOrigin reports whether u points at the backend itself. Only those
// requests carry the bearer token.
func (c *Client) sameOrigin(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}
