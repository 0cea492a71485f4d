package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keeps one session's pair in a hash with the fields accessToken and
// refreshToken. It backs clients that hold sessions on behalf of many users,
// such as a server-side web shell.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis stores the pair of sessionID. A positive ttl expires the hash that
// long after the last Set.
func NewRedis(client *redis.Client, sessionID string, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		key:    fmt.Sprintf("condofee:session:%s:tokens", sessionID),
		ttl:    ttl,
		logger: orNop(logger),
	}
}

func (r *Redis) Set(ctx context.Context, pair Pair) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, KeyAccessToken, pair.AccessToken, KeyRefreshToken, pair.RefreshToken)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store tokens failed: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context) Pair {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		r.logger.Warn("load tokens failed", zap.String("key", r.key), zap.Error(err))
		return Pair{}
	}
	return Pair{
		AccessToken:  fields[KeyAccessToken],
		RefreshToken: fields[KeyRefreshToken],
	}.Normalize()
}

func (r *Redis) Remove(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("remove tokens failed: %w", err)
	}
	return nil
}
