// Package tokenstore persists the client's bearer token pair.
package tokenstore

import (
	"context"

	"go.uber.org/zap"
)

// Fixed storage keys for the two tokens
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Undefined is the stringified missing value some clients persist by mistake.
// It is read back as an absent token.
const Undefined = "undefined"

// Pair is the access/refresh token pair. An empty string means absent.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Normalize maps "undefined" entries to absent
func (p Pair) Normalize() Pair {
	if p.AccessToken == Undefined {
		p.AccessToken = ""
	}
	if p.RefreshToken == Undefined {
		p.RefreshToken = ""
	}
	return p
}

// Complete reports whether both tokens are present
func (p Pair) Complete() bool {
	p = p.Normalize()
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Empty reports whether neither token is present
func (p Pair) Empty() bool {
	p = p.Normalize()
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Store persists a Pair. Get never fails: storage problems read as the empty
// pair. Remove is idempotent.
type Store interface {
	Set(ctx context.Context, pair Pair) error
	Get(ctx context.Context) Pair
	Remove(ctx context.Context) error
}

// Open returns a file store at path, or Nop when there is no storage
// location (for example when running without a home directory)
func Open(path string, logger *zap.Logger) Store {
	if path == "" {
		return Nop{}
	}
	return NewFile(path, logger)
}

// Nop is the store used without a storage context: it always reads empty and
// discards writes
type Nop struct{}

func (Nop) Set(context.Context, Pair) error { return nil }
func (Nop) Get(context.Context) Pair        { return Pair{} }
func (Nop) Remove(context.Context) error    { return nil }

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
