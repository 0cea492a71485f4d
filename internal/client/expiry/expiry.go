// Package expiry reads the expiry claim of an access token on the client.
//
// The signature is not verified. The result only decides whether to refresh
// proactively; the server still authorizes every request.
package expiry

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned for input that is not a decodable JWT
var ErrMalformed = errors.New("malformed token")

// Claims is the decoded, unverified claim set
type Claims struct {
	jwt.RegisteredClaims
}

// Decode parses token without verifying its signature
func Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformed
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &claims, nil
}

// Expired reports whether exp is present and strictly before now, compared in
// whole unix seconds. A token without exp never expires here.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Unix() < now.Unix()
}

// Fresh decodes token and reports whether it is still usable at now. An
// undecodable token counts as expired so the caller refreshes instead of
// failing.
func Fresh(token string, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil {
		return false
	}
	return !claims.Expired(now)
}
