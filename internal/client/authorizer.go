package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/condohub/condofee/internal/client/expiry"
	"github.com/condohub/condofee/internal/client/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RefreshPath is the endpoint that trades a refresh token for a new pair
const RefreshPath = "/auth/refresh"

// DefaultRefreshTimeout bounds a refresh call independently of its callers
const DefaultRefreshTimeout = 15 * time.Second

// Outcome is the authorization decision taken for one request
type Outcome string

const (
	// OutcomeAttach: stored access token is fresh and is attached
	OutcomeAttach Outcome = "attach"
	// OutcomeRefreshed: access token had expired, a refresh succeeded and
	// the new access token is attached
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeRefreshFailed: refresh was rejected or failed; tokens were
	// cleared and the request goes out anonymous
	OutcomeRefreshFailed Outcome = "refresh_failed"
	// OutcomeNoSession: a token was missing; tokens were cleared and the
	// request goes out anonymous
	OutcomeNoSession Outcome = "no_session"
)

// Authorizer decides, per request, which bearer token to send. It never
// fails: every problem degrades to an anonymous request and the server
// remains the judge of authorization.
type Authorizer struct {
	store          tokenstore.Store
	base           http.RoundTripper
	refreshURL     string
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *zap.Logger

	group singleflight.Group
}

// NewAuthorizer creates an Authorizer. base carries the refresh call and
// must not itself be an authorizing transport.
func NewAuthorizer(baseURL string, store tokenstore.Store, base http.RoundTripper, logger *zap.Logger) *Authorizer {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{
		store:          store,
		base:           base,
		refreshURL:     baseURL + RefreshPath,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// Authorize returns the access token to attach, or "" to send the request
// without credentials
func (a *Authorizer) Authorize(ctx context.Context) (string, Outcome) {
	token, outcome := a.authorize(ctx)
	authDecisions.WithLabelValues(string(outcome)).Inc()
	a.logger.Debug("authorization decision", zap.String("outcome", string(outcome)))
	return token, outcome
}

func (a *Authorizer) authorize(ctx context.Context) (string, Outcome) {
	pair := a.store.Get(ctx).Normalize()
	if !pair.Complete() {
		a.clear(ctx)
		return "", OutcomeNoSession
	}

	if expiry.Fresh(pair.AccessToken, a.now()) {
		return pair.AccessToken, OutcomeAttach
	}

	fresh, err := a.refresh(ctx, pair.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			// Only this caller gave up. The shared refresh still runs and
			// stores its result, so the session is left alone.
			a.logger.Debug("caller cancelled while waiting for token refresh", zap.Error(err))
			return "", OutcomeRefreshFailed
		}
		a.logger.Info("token refresh failed, continuing without credentials", zap.Error(err))
		a.clear(ctx)
		return "", OutcomeRefreshFailed
	}
	return fresh.AccessToken, OutcomeRefreshed
}

// refresh coalesces concurrent refreshes of the same refresh token into one
// call. The call runs detached from any single caller and is bounded by
// refreshTimeout; each caller stops waiting when its own ctx is done.
// Callers that arrive after a rotation pick up the stored pair.
func (a *Authorizer) refresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	ch := a.group.DoChan(refreshToken, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.refreshTimeout)
		defer cancel()

		if cur := a.store.Get(fctx).Normalize(); cur.Complete() &&
			cur.RefreshToken != refreshToken && expiry.Fresh(cur.AccessToken, a.now()) {
			tokenRefreshes.WithLabelValues("reused").Inc()
			return cur, nil
		}

		pair, err := a.callRefresh(fctx, refreshToken)
		if err != nil {
			return nil, err
		}
		if err := a.store.Set(fctx, pair); err != nil {
			a.logger.Warn("failed to persist refreshed tokens", zap.Error(err))
		}
		return pair, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return tokenstore.Pair{}, res.Err
		}
		return res.Val.(tokenstore.Pair), nil
	case <-ctx.Done():
		return tokenstore.Pair{}, fmt.Errorf("waiting for token refresh: %w", ctx.Err())
	}
}

func (a *Authorizer) callRefresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.refreshURL, nil)
	if err != nil {
		return tokenstore.Pair{}, fmt.Errorf("build refresh request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.base.RoundTrip(req)
	if err != nil {
		tokenRefreshes.WithLabelValues("error").Inc()
		return tokenstore.Pair{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	env, err := readEnvelope(resp)
	if err != nil {
		tokenRefreshes.WithLabelValues("error").Inc()
		return tokenstore.Pair{}, err
	}
	if env.Failed() {
		tokenRefreshes.WithLabelValues("rejected").Inc()
		return tokenstore.Pair{}, &APIError{Code: env.Code, Msg: env.Msg, Status: env.Status}
	}

	var pair tokenstore.Pair
	if err := env.Decode(&pair); err != nil {
		tokenRefreshes.WithLabelValues("error").Inc()
		return tokenstore.Pair{}, err
	}
	if !pair.Complete() {
		tokenRefreshes.WithLabelValues("error").Inc()
		return tokenstore.Pair{}, errors.New("refresh response carries no token pair")
	}

	tokenRefreshes.WithLabelValues("success").Inc()
	return pair, nil
}

func (a *Authorizer) clear(ctx context.Context) {
	if err := a.store.Remove(ctx); err != nil {
		a.logger.Warn("failed to clear tokens", zap.Error(err))
	}
}

// readEnvelope decodes an envelope body of any status. Bodies that are not
// an envelope become an *HTTPError.
func readEnvelope(resp *http.Response) (*Envelope, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || !looksLikeEnvelope(body) {
		return nil, &HTTPError{Status: resp.StatusCode, Body: body}
	}
	env.Status = resp.StatusCode
	return &env, nil
}

// looksLikeEnvelope requires the code field so arbitrary JSON objects are
// not mistaken for a success envelope
func looksLikeEnvelope(body []byte) bool {
	var probe struct {
		Code *int `json:"code"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.Code != nil
}
