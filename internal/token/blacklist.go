package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist handles revocation of access and refresh tokens using Redis
type Blacklist struct {
	client *redis.Client
}

// NewBlacklist creates a new token blacklist
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

func blacklistKey(tokenID string) string {
	return fmt.Sprintf("condofee:revoked:jti:%s", tokenID)
}

// Add revokes a token ID until the token would have expired anyway
func (b *Blacklist) Add(ctx context.Context, tokenID string, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return nil
	}

	if err := b.client.Set(ctx, blacklistKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	return nil
}

// Claim atomically revokes a token ID and reports whether this call was the
// first to do so. Refresh rotation uses it so a refresh token is spent once.
func (b *Blacklist) Claim(ctx context.Context, tokenID string, expiry time.Time) (bool, error) {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return false, nil
	}

	ok, err := b.client.SetNX(ctx, blacklistKey(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}

	return ok, nil
}

// IsBlacklisted checks if a token is blacklisted
func (b *Blacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	exists, err := b.client.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return exists > 0, nil
}
