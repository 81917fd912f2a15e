package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters. A zero MaxRefreshAttempts
// disables refresh throttling.
type Config struct {
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	ThrottleIP         bool
	MaxRefreshAttempts int
	RefreshWindow      time.Duration

	// MaxRegistrations caps sign-ups per client IP; zero disables it.
	MaxRegistrations int
	RegisterWindow   time.Duration
}

// Limiter enforces login and refresh budgets with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckLogin reports ErrRateLimited once account or ip has used up its
// failure budget.
func (l *Limiter) CheckLogin(ctx context.Context, account, ip string) error {
	if err := l.checkCounter(ctx, loginKey(account), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.ThrottleIP && ip != "" {
		return l.checkCounter(ctx, ipKey(ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// RecordLoginFailure counts a failed attempt and reports whether the account
// is now locked.
func (l *Limiter) RecordLoginFailure(ctx context.Context, account, ip string) (bool, error) {
	count, err := l.incrementWithTTL(ctx, loginKey(account), l.config.LoginCooldown)
	if err != nil {
		return false, err
	}
	if l.config.ThrottleIP && ip != "" {
		if _, err := l.incrementWithTTL(ctx, ipKey(ip), l.config.LoginCooldown); err != nil {
			return false, err
		}
	}
	return count >= int64(l.config.MaxLoginAttempts), nil
}

// ResetLogin clears the account counter after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, account string) error {
	if err := l.redis.Del(ctx, loginKey(account)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginFailures returns the current failure count for account.
func (l *Limiter) LoginFailures(ctx context.Context, account string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(account)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

// AllowRefresh counts a refresh for session and fails once the window
// budget is exceeded.
func (l *Limiter) AllowRefresh(ctx context.Context, session string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, refreshKey(session), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// AllowRegister counts a sign-up attempt from ip.
func (l *Limiter) AllowRegister(ctx context.Context, ip string) error {
	if l.config.MaxRegistrations <= 0 || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, registerKey(ip), l.config.RegisterWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRegistrations) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed window: the TTL is set on the first hit only.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func loginKey(account string) string {
	return "rl:login:" + account
}

func ipKey(ip string) string {
	return "rl:ip:" + ip
}

func refreshKey(sid string) string {
	return "rl:refresh:" + sid
}

func registerKey(ip string) string {
	return "rl:register:" + ip
}
