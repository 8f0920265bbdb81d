package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps every Redis transport failure.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
	// ErrInvalidTTL is returned for non-positive record lifetimes.
	ErrInvalidTTL = errors.New("revocation ttl must be positive")
	// ErrCorruptCutoff is returned when a cutoff key holds a non-integer.
	ErrCorruptCutoff = errors.New("logout cutoff value is corrupt")
)

const revokedSentinel = "1"

// Option customizes a Store.
type Option func(*Store)

// WithPrefix namespaces all keys as "<prefix>:revoked:..." and
// "<prefix>:logout_ts:...".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the wall clock used for cutoff timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the Redis-backed revocation store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a Store on top of client. The client is owned by the
// caller.
func NewStore(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis: client,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) namespaced(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) revokedKey(tokenID string) string {
	return s.namespaced("revoked:" + tokenID)
}

func (s *Store) cutoffKey(accountID string) string {
	return s.namespaced("logout_ts:" + accountID)
}

// RevokeToken marks tokenID as revoked for ttl. Repeating the call only
// refreshes the TTL.
func (s *Store) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.redis.Set(ctx, s.revokedKey(tokenID), revokedSentinel, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsTokenRevoked reports whether tokenID has a live revocation record.
func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// SetLogoutCutoff stores the current unix second as accountID's cutoff and
// returns it. Last write wins.
func (s *Store) SetLogoutCutoff(ctx context.Context, accountID string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, ErrInvalidTTL
	}
	cutoff := s.now().Unix()
	if err := s.redis.Set(ctx, s.cutoffKey(accountID), cutoff, ttl).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return cutoff, nil
}

// GetLogoutCutoff returns accountID's cutoff. ok is false when none is set.
func (s *Store) GetLogoutCutoff(ctx context.Context, accountID string) (cutoff int64, ok bool, err error) {
	raw, err := s.redis.Get(ctx, s.cutoffKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	cutoff, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrCorruptCutoff, raw)
	}
	return cutoff, true, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
