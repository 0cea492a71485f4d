package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter locks out an email/IP pair after repeated failed logins
type Limiter struct {
	client          *redis.Client
	window          time.Duration // Time window for counting attempts
	maxAttempts     int           // Maximum attempts allowed in window
	lockoutDuration time.Duration // How long to block after exceeding limit
}

// Decision is the outcome of a login attempt check
type Decision struct {
	Allowed          bool
	Remaining        int
	LockoutRemaining time.Duration
}

// NewLimiter creates a new rate limiter
func NewLimiter(client *redis.Client, window time.Duration, maxAttempts int, lockoutDuration time.Duration) *Limiter {
	return &Limiter{
		client:          client,
		window:          window,
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
	}
}

func attemptKey(email, ipAddress string) string {
	return fmt.Sprintf("condofee:ratelimit:login:%s:%s", ipAddress, email)
}

func lockoutKey(email, ipAddress string) string {
	return fmt.Sprintf("condofee:ratelimit:lockout:%s:%s", ipAddress, email)
}

// Check reports whether a login attempt is allowed. Reaching the attempt
// budget converts the counter into a lockout.
func (l *Limiter) Check(ctx context.Context, email, ipAddress string) (Decision, error) {
	lockKey := lockoutKey(email, ipAddress)

	ttl, err := l.client.TTL(ctx, lockKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, fmt.Errorf("failed to check lockout status: %w", err)
	}
	if ttl > 0 {
		return Decision{LockoutRemaining: ttl}, nil
	}

	countKey := attemptKey(email, ipAddress)
	count, err := l.client.Get(ctx, countKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, fmt.Errorf("failed to get attempt count: %w", err)
	}

	remaining := l.maxAttempts - count
	if remaining > 0 {
		return Decision{Allowed: true, Remaining: remaining}, nil
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, lockKey, "1", l.lockoutDuration)
	pipe.Del(ctx, countKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("failed to set lockout: %w", err)
	}

	return Decision{LockoutRemaining: l.lockoutDuration}, nil
}

// RecordFailure records a failed login attempt
func (l *Limiter) RecordFailure(ctx context.Context, email, ipAddress string) error {
	key := attemptKey(email, ipAddress)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment attempt counter: %w", err)
	}

	// Window starts at the first failure
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	return nil
}

// RecordSuccess clears the attempt counter after a successful login
func (l *Limiter) RecordSuccess(ctx context.Context, email, ipAddress string) error {
	if err := l.client.Del(ctx, attemptKey(email, ipAddress)).Err(); err != nil {
		return fmt.Errorf("failed to clear attempt counter: %w", err)
	}
	return nil
}

// ClearLockout manually clears a lockout (admin function)
func (l *Limiter) ClearLockout(ctx context.Context, email, ipAddress string) error {
	if err := l.client.Del(ctx, lockoutKey(email, ipAddress), attemptKey(email, ipAddress)).Err(); err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}
	return nil
}
