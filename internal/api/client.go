package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/aristath/testscriptgen/internal/config"
	"github.com/aristath/testscriptgen/internal/logging"
)

// TokenSource supplies the bearer token for authenticated calls.
// An empty token means the call goes out without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Retry      RetryConfig
	Breaker    BreakerConfig
	Tokens     TokenSource
	HTTPClient *http.Client
	Logger     *logrus.Entry
}

// Client is a thin REST client for the execution backend.
// Every method returns either its payload or an *Error; it never panics on
// expected failures.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// New creates a client from options, filling in defaults.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken("")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("api")
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		tokens:  opts.Tokens,
		retry:   opts.Retry,
		breaker: newBreaker(opts.BaseURL, opts.Breaker, opts.Logger),
		log:     opts.Logger,
	}
}

// NewFromConfig creates a client from the dashboard's API configuration.
func NewFromConfig(cfg config.APIConfig, tokens TokenSource, log *logrus.Entry) *Client {
	return New(Options{
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Retry: RetryConfig{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
			MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMs) * time.Millisecond,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: uint32(cfg.Breaker.ConsecutiveFailures),
			OpenTimeout:         time.Duration(cfg.Breaker.OpenSeconds) * time.Second,
		},
		Tokens: tokens,
		Logger: log,
	})
}

// BaseURL returns the backend base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one request.
type call struct {
	method   string
	path     string
	body     any        // JSON-encoded when non-nil
	form     url.Values // form-encoded when non-nil
	auth     bool
	fallback string // message used when the server gives none
}

// reply is a fully-read HTTP response.
type reply struct {
	status int
	body   []byte
}

// do runs a call and decodes a successful body into out (which may be nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	r, err := c.execute(ctx, cl)
	if err != nil {
		return c.transportError(ctx, cl, err)
	}

	c.log.WithFields(logrus.Fields{
		"method": cl.method,
		"path":   cl.path,
		"status": r.status,
	}).Debug("backend call")

	if r.status < 200 || r.status > 299 {
		return serverError(r.status, r.body, cl.fallback)
	}

	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return &Error{Kind: KindUnexpected, Status: r.status, Message: MsgUnexpected, Err: fmt.Errorf("decoding %s %s: %w", cl.method, cl.path, err)}
	}
	return nil
}

// transportError maps a failure that produced no usable response.
func (c *Client) transportError(ctx context.Context, cl call, err error) *Error {
	// Checked first: a cancelled request's error can wrap the context's cause,
	// which may be another call's *Error.
	if ctx.Err() != nil {
		return &Error{Kind: KindCancelled, Message: MsgCancelled, Err: ctx.Err()}
	}
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: reqErr.err}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.WithError(err).Warn("backend circuit open, request not sent")
		return &Error{Kind: KindNetwork, Message: MsgNoResponse, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		c.log.WithError(err).WithField("path", cl.path).Warn("no response from backend")
		return &Error{Kind: KindNetwork, Message: MsgNoResponse, Err: err}
	}
	return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: err}
}

// requestError marks a request that could not be built, so nothing was sent.
type requestError struct {
	err error
}

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

// roundTrip sends a single request and reads the whole response.
func (c *Client) roundTrip(ctx context.Context, cl call) (reply, error) {
	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return reply{}, requestError{err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply{}, err
	}
	return reply{status: resp.StatusCode, body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case cl.form != nil:
		body = strings.NewReader(cl.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case cl.body != nil:
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if cl.auth {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}
