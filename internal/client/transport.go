package client

import (
	"net/http"
)

// Transport is an http.RoundTripper that authorizes every request through an
// Authorizer before handing it to Base
type Transport struct {
	Auth *Authorizer
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, _ := t.Auth.Authorize(req.Context())

	// RoundTrippers must not modify the caller's request
	r := req.Clone(req.Context())
	r.Header.Del("Authorization")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	return t.base().RoundTrip(r)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}
