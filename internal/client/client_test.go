package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/condohub/condofee/internal/client/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func jwtWithExp(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        exp.String() + t.Name(),
	}).SignedString([]byte("server-only-secret"))
	require.NoError(t, err)
	return tok
}

type fakeAPI struct {
	*httptest.Server

	mu           sync.Mutex
	refreshCalls int32
	refreshAuth  []string
	lastAuth     string
	probeCalls   int32

	// refresh answers /auth/refresh
	refresh http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc(RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.refreshCalls, 1)
		api.mu.Lock()
		api.refreshAuth = append(api.refreshAuth, r.Header.Get("Authorization"))
		handler := api.refresh
		api.mu.Unlock()

		if handler == nil {
			writeEnvelope(w, http.StatusUnauthorized, CodeFailure, "Invalid token", nil)
			return
		}
		handler(w, r)
	})
	mux.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.probeCalls, 1)
		api.mu.Lock()
		api.lastAuth = r.Header.Get("Authorization")
		api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, CodeSuccess, "ok", map[string]string{"auth": r.Header.Get("Authorization")})
	})
	mux.HandleFunc("/denied", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusForbidden, CodeFailure, "Forbidden", nil)
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) setRefresh(h http.HandlerFunc) {
	a.mu.Lock()
	a.refresh = h
	a.mu.Unlock()
}

func (a *fakeAPI) refreshAuths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.refreshAuth...)
}

func (a *fakeAPI) seenAuth() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAuth
}

func writeEnvelope(w http.ResponseWriter, status, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "msg": msg, "data": data})
}

func rotateTo(pair tokenstore.Pair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, CodeSuccess, "ok", map[string]interface{}{
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
			"tokenType":    "Bearer",
		})
	}
}

func probe(t *testing.T, c *Client) {
	t.Helper()
	_, err := Call[map[string]string](context.Background(), c, http.MethodGet, "/probe", nil)
	require.NoError(t, err, "the request itself is never aborted")
}

func TestNoSession_SendsAnonymousWithoutRefresh(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemory()
	c := New(api.URL, store)

	before := testutil.ToFloat64(authDecisions.WithLabelValues(string(OutcomeNoSession)))
	probe(t, c)

	assert.Empty(t, api.seenAuth())
	assert.Zero(t, atomic.LoadInt32(&api.refreshCalls))
	assert.Equal(t, before+1, testutil.ToFloat64(authDecisions.WithLabelValues(string(OutcomeNoSession))))
}

func TestMissingRefreshToken_ClearsAndSendsAnonymous(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{AccessToken: jwtWithExp(t, time.Now().Add(time.Hour))}))
	c := New(api.URL, store)

	probe(t, c)

	assert.Empty(t, api.seenAuth())
	assert.Zero(t, atomic.LoadInt32(&api.refreshCalls))
	assert.True(t, store.Get(context.Background()).Empty())
}

func TestFreshToken_AttachedWithoutRefresh(t *testing.T) {
	api := newFakeAPI(t)
	access := jwtWithExp(t, time.Now().Add(time.Hour))
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{AccessToken: access, RefreshToken: "R1"}))
	c := New(api.URL, store)

	probe(t, c)

	assert.Equal(t, "Bearer "+access, api.seenAuth())
	assert.Zero(t, atomic.LoadInt32(&api.refreshCalls))
}

func TestExpiredToken_RefreshesThenAttachesNewToken(t *testing.T) {
	api := newFakeAPI(t)
	a1 := jwtWithExp(t, time.Now().Add(-10*time.Second))
	a2 := jwtWithExp(t, time.Now().Add(15*time.Minute))
	api.setRefresh(rotateTo(tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"}))

	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{AccessToken: a1, RefreshToken: "R1"}))
	c := New(api.URL, store)

	probe(t, c)

	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
	assert.Equal(t, []string{"Bearer R1"}, api.refreshAuths(), "refresh uses the refresh token as bearer")
	assert.Equal(t, "Bearer "+a2, api.seenAuth())
	assert.Equal(t, tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"}, store.Get(context.Background()))

	// The rotated pair is fresh, so the next call attaches without refreshing
	probe(t, c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
}

func TestUndecodableToken_TreatedAsExpired(t *testing.T) {
	api := newFakeAPI(t)
	a2 := jwtWithExp(t, time.Now().Add(15*time.Minute))
	api.setRefresh(rotateTo(tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"}))

	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{AccessToken: "not-a-jwt", RefreshToken: "R1"}))
	c := New(api.URL, store)

	probe(t, c)

	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
	assert.Equal(t, "Bearer "+a2, api.seenAuth())
}

func TestRefreshFailure_ClearsAndProceedsAnonymous(t *testing.T) {
	tests := []struct {
		name    string
		refresh http.HandlerFunc
	}{
		{
			name: "declared failure",
			refresh: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusUnauthorized, CodeFailure, "Token revoked", nil)
			},
		},
		{
			name: "declared failure with 200",
			refresh: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, CodeFailure, "nope", nil)
			},
		},
		{
			name: "server error page",
			refresh: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream down", http.StatusBadGateway)
			},
		},
		{
			name: "success without tokens",
			refresh: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, CodeSuccess, "ok", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.setRefresh(tt.refresh)

			store := tokenstore.NewMemory()
			require.NoError(t, store.Set(context.Background(), tokenstore.Pair{
				AccessToken:  jwtWithExp(t, time.Now().Add(-time.Minute)),
				RefreshToken: "R1",
			}))
			c := New(api.URL, store)

			probe(t, c)

			assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
			assert.Equal(t, int32(1), atomic.LoadInt32(&api.probeCalls), "request is not aborted")
			assert.Empty(t, api.seenAuth())
			assert.True(t, store.Get(context.Background()).Empty())
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRefreshTransportError_ClearsAndProceedsAnonymous(t *testing.T) {
	api := newFakeAPI(t)
	flaky := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == RefreshPath {
			return nil, errors.New("connection reset by peer")
		}
		return http.DefaultTransport.RoundTrip(r)
	})

	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{
		AccessToken:  jwtWithExp(t, time.Now().Add(-time.Minute)),
		RefreshToken: "R1",
	}))
	c := New(api.URL, store, WithTransport(flaky))

	probe(t, c)

	assert.Empty(t, api.seenAuth())
	assert.True(t, store.Get(context.Background()).Empty())
}

func TestUndefinedAccessToken_TreatedAsAbsent(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{AccessToken: "undefined", RefreshToken: "R1"}))
	c := New(api.URL, store)

	probe(t, c)

	assert.Empty(t, api.seenAuth())
	assert.Zero(t, atomic.LoadInt32(&api.refreshCalls))
	assert.True(t, store.Get(context.Background()).Empty())
}

func TestCallerAuthorizationHeaderIsReplaced(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.URL, tokenstore.NewMemory())

	req, err := http.NewRequest(http.MethodGet, api.URL+"/probe", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer smuggled")

	resp, err := c.http.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, api.seenAuth())
	assert.Equal(t, "Bearer smuggled", req.Header.Get("Authorization"), "caller's request is not mutated")
}

func TestConcurrentExpiredRequests_ShareOneRefresh(t *testing.T) {
	api := newFakeAPI(t)
	a2 := jwtWithExp(t, time.Now().Add(15*time.Minute))
	next := rotateTo(tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"})
	api.setRefresh(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		next(w, r)
	})

	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{
		AccessToken:  jwtWithExp(t, time.Now().Add(-time.Minute)),
		RefreshToken: "R1",
	}))
	c := New(api.URL, store)

	const n = 10
	var wg sync.WaitGroup
	results := make([]map[string]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Call[map[string]string](context.Background(), c, http.MethodGet, "/probe", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Bearer "+a2, results[i]["auth"])
	}
}

func TestCancelledCaller_DoesNotAbandonSharedRefresh(t *testing.T) {
	api := newFakeAPI(t)
	a2 := jwtWithExp(t, time.Now().Add(15*time.Minute))
	next := rotateTo(tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"})
	release := make(chan struct{})
	api.setRefresh(func(w http.ResponseWriter, r *http.Request) {
		<-release
		next(w, r)
	})

	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{
		AccessToken:  jwtWithExp(t, time.Now().Add(-time.Minute)),
		RefreshToken: "R1",
	}))
	authz := New(api.URL, store).Authorizer()

	// The first caller starts the refresh and gives up before the server answers
	ctxA, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tokA, outcomeA := authz.Authorize(ctxA)
	assert.Empty(t, tokA)
	assert.Equal(t, OutcomeRefreshFailed, outcomeA)
	assert.Equal(t, "R1", store.Get(context.Background()).RefreshToken, "a cancelled caller leaves the session alone")

	var tokB string
	done := make(chan struct{})
	go func() {
		defer close(done)
		tokB, _ = authz.Authorize(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-done

	assert.Equal(t, a2, tokB)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
	assert.Equal(t, tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"}, store.Get(context.Background()))
}

func TestRefresh_ReusesPairRotatedByEarlierCaller(t *testing.T) {
	api := newFakeAPI(t)
	a2 := jwtWithExp(t, time.Now().Add(15*time.Minute))
	rotated := tokenstore.Pair{AccessToken: a2, RefreshToken: "R2"}

	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), rotated))
	authz := New(api.URL, store).Authorizer()

	before := testutil.ToFloat64(tokenRefreshes.WithLabelValues("reused"))

	// A caller that read R1 before the rotation landed
	pair, err := authz.refresh(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, rotated, pair)
	assert.Zero(t, atomic.LoadInt32(&api.refreshCalls))
	assert.Equal(t, before+1, testutil.ToFloat64(tokenRefreshes.WithLabelValues("reused")))
}

func TestDo_UnwrapsEnvelopes(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.URL, tokenstore.NewMemory())

	env, err := c.Do(context.Background(), http.MethodGet, "/denied", nil)
	require.NoError(t, err, "declared failures are returned as envelopes")
	assert.True(t, env.Failed())
	assert.Equal(t, http.StatusForbidden, env.Status)
	assert.Equal(t, "Forbidden", env.Msg)

	_, err = Call[struct{}](context.Background(), c, http.MethodGet, "/denied", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeFailure, apiErr.Code)
	assert.Equal(t, "Forbidden", apiErr.Msg)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	_, err = c.Do(context.Background(), http.MethodGet, "/html", nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
}

func TestDo_TransportErrorUnmodified(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.URL, tokenstore.NewMemory())
	api.Close()

	_, err := c.Do(context.Background(), http.MethodGet, "/probe", nil)
	require.Error(t, err)

	var urlErr *url.Error
	assert.True(t, errors.As(err, &urlErr))
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestEnvelope_NonZeroCodeIsSuccess(t *testing.T) {
	for _, code := range []int{1, 2, 200} {
		env := &Envelope{Code: code}
		assert.False(t, env.Failed(), "code %d", code)
	}
	assert.True(t, (&Envelope{Code: CodeFailure}).Failed())
}

func TestTokenSource(t *testing.T) {
	api := newFakeAPI(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := jwtWithExp(t, exp)

	store := tokenstore.NewMemory()
	c := New(api.URL, store)

	_, err := c.TokenSource(context.Background()).Token()
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Set(context.Background(), tokenstore.Pair{AccessToken: access, RefreshToken: "R1"}))
	tok, err := c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, access, tok.AccessToken)
	assert.True(t, exp.Equal(tok.Expiry))

	// Another HTTP client can ride on the session
	other := &http.Client{Transport: &oauth2.Transport{Source: c.TokenSource(context.Background())}}
	resp, err := other.Get(api.URL + "/probe")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer "+access, api.seenAuth())
}
