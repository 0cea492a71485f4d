// Package client is the authenticated condofee API client. Requests go
// through Transport, which attaches or refreshes the bearer token, and
// responses are unwrapped from the {code, msg, data} envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/condohub/condofee/internal/client/expiry"
	"github.com/condohub/condofee/internal/client/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by the token source when there is no usable token
var ErrNoSession = errors.New("no authenticated session")

type options struct {
	base           http.RoundTripper
	timeout        time.Duration
	refreshTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// Option configures a Client
type Option func(*options)

// WithTransport sets the underlying transport used for all calls
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRefreshTimeout bounds the shared token refresh call
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the clock used for token expiry checks
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Client calls the condofee API
type Client struct {
	baseURL string
	http    *http.Client
	store   tokenstore.Store
	auth    *Authorizer
	logger  *zap.Logger
}

func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	o := options{
		base:           http.DefaultTransport,
		timeout:        15 * time.Second,
		refreshTimeout: DefaultRefreshTimeout,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		store = tokenstore.Nop{}
	}

	baseURL = strings.TrimRight(baseURL, "/")
	auth := NewAuthorizer(baseURL, store, o.base, o.logger)
	auth.now = o.now
	auth.refreshTimeout = o.refreshTimeout

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: &Transport{Auth: auth, Base: o.base},
		},
		store:  store,
		auth:   auth,
		logger: o.logger,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string { return c.baseURL }

// Tokens returns the token store the client authorizes from
func (c *Client) Tokens() tokenstore.Store { return c.store }

// Authorizer returns the per-request authorization policy
func (c *Client) Authorizer() *Authorizer { return c.auth }

// Do sends a request and returns the decoded envelope whatever the HTTP
// status. Transport errors are returned as they come; a body that is not an
// envelope yields an *HTTPError.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	env, err := readEnvelope(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", env.Status),
		zap.Int("code", env.Code),
	)
	return env, nil
}

// Call sends a request and decodes the envelope's data into T. A declared
// failure becomes an *APIError.
func Call[T any](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	var out T
	env, err := c.Do(ctx, method, path, body)
	if err != nil {
		return out, err
	}
	if env.Failed() {
		return out, &APIError{Code: env.Code, Msg: env.Msg, Status: env.Status}
	}
	if err := env.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// TokenSource adapts the client's session to oauth2 so other HTTP clients can
// reuse it. Each Token call runs the same attach-or-refresh decision.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, auth: c.auth}
}

type sessionTokenSource struct {
	ctx  context.Context
	auth *Authorizer
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	access, _ := s.auth.Authorize(s.ctx)
	if access == "" {
		return nil, ErrNoSession
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if claims, err := expiry.Decode(access); err == nil && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return tok, nil
}
