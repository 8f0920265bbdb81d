package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginWindow      time.Duration
}

// hitScript bumps a failure counter and opens its window on the first hit
// in one round trip, so a counter never outlives its window.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Limiter enforces per-username and per-IP failed login budgets.
type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

// New creates a Limiter backed by the given Redis client.
func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg}
}

// keys returns the counters a login attempt is charged to.
func (l *Limiter) keys(username, ip string) []string {
	keys := []string{"login_fail:" + username}
	if l.cfg.EnableIPThrottle && ip != "" {
		keys = append(keys, "login_fail_ip:"+ip)
	}
	return keys
}

// CheckLogin returns ErrRateLimited when username or ip has used up its
// failure budget. Both counters are read in one pipeline.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	keys := l.keys(username, ip)
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, cmd := range cmds {
		n, err := cmd.Int64()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		case n >= int64(l.cfg.MaxLoginAttempts):
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed login for username and ip. It reports
// ErrRateLimited once either counter passes the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	limited := false
	for _, k := range l.keys(username, ip) {
		n, err := hitScript.Run(ctx, l.rdb, []string{k}, l.cfg.LoginWindow.Milliseconds()).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n > int64(l.cfg.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the username counter after a successful login. The IP
// counter is left alone so one good account cannot launder a spraying IP.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if err := l.rdb.Del(ctx, "login_fail:"+username).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failure count for username and how long until its
// window closes. A username with no failures reports 0 and 0.
func (l *Limiter) Attempts(ctx context.Context, username string) (int, time.Duration, error) {
	key := "login_fail:" + username
	var get *redis.StringCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	n, err := get.Int64()
	if err != nil || n < 0 {
		return 0, 0, nil
	}
	return int(n), max(ttl.Val(), 0), nil
}
