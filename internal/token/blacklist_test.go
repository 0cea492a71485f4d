package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBlacklist(t *testing.T) (*miniredis.Miniredis, *Blacklist) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewBlacklist(client)
}

func TestBlacklist_AddAndCheck(t *testing.T) {
	mr, bl := newTestBlacklist(t)
	ctx := context.Background()

	if err := bl.Add(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	revoked, err := bl.IsBlacklisted(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsBlacklisted() failed: %v", err)
	}
	if !revoked {
		t.Error("IsBlacklisted() = false, want true")
	}

	mr.FastForward(2 * time.Minute)

	revoked, err = bl.IsBlacklisted(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsBlacklisted() failed: %v", err)
	}
	if revoked {
		t.Error("entry should expire together with the token")
	}
}

func TestBlacklist_AddExpiredIsNoop(t *testing.T) {
	_, bl := newTestBlacklist(t)
	ctx := context.Background()

	if err := bl.Add(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	revoked, err := bl.IsBlacklisted(ctx, "jti-old")
	if err != nil {
		t.Fatalf("IsBlacklisted() failed: %v", err)
	}
	if revoked {
		t.Error("expired token should not be stored")
	}
}

func TestBlacklist_ClaimOnce(t *testing.T) {
	_, bl := newTestBlacklist(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	first, err := bl.Claim(ctx, "jti-refresh", expiry)
	if err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if !first {
		t.Error("first Claim() = false, want true")
	}

	second, err := bl.Claim(ctx, "jti-refresh", expiry)
	if err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if second {
		t.Error("second Claim() = true, want false")
	}
}
