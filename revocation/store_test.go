package revocation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const refreshTTL = 7 * 24 * time.Hour

func newStoreTest(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, opts...), mr
}

func TestRevokeTokenKeyLayoutAndTTL(t *testing.T) {
	store, mr := newStoreTest(t)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "abc", refreshTTL); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	got, err := mr.Get("revoked:abc")
	if err != nil {
		t.Fatalf("expected revoked:abc key: %v", err)
	}
	if got != "1" {
		t.Fatalf("expected sentinel 1, got %q", got)
	}
	if ttl := mr.TTL("revoked:abc"); ttl != refreshTTL {
		t.Fatalf("expected ttl %s, got %s", refreshTTL, ttl)
	}

	revoked, err := store.IsTokenRevoked(ctx, "abc")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("expected abc to be revoked")
	}

	revoked, err = store.IsTokenRevoked(ctx, "xyz")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Fatal("expected xyz to be unaffected")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.RevokeToken(ctx, "abc", refreshTTL); err != nil {
			t.Fatalf("RevokeToken #%d: %v", i, err)
		}
	}
	revoked, err := store.IsTokenRevoked(ctx, "abc")
	if err != nil || !revoked {
		t.Fatalf("expected revoked after repeats, got %v err=%v", revoked, err)
	}
}

func TestRevocationExpiresWithTTL(t *testing.T) {
	store, mr := newStoreTest(t)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "abc", time.Minute); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	revoked, err := store.IsTokenRevoked(ctx, "abc")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Fatal("expected record to expire")
	}
}

func TestLogoutCutoffLastWriteWins(t *testing.T) {
	now := int64(1000)
	store, mr := newStoreTest(t, WithClock(func() time.Time { return time.Unix(now, 0) }))
	ctx := context.Background()

	if _, ok, err := store.GetLogoutCutoff(ctx, "42"); err != nil || ok {
		t.Fatalf("expected no cutoff, got ok=%v err=%v", ok, err)
	}

	cutoff, err := store.SetLogoutCutoff(ctx, "42", refreshTTL)
	if err != nil {
		t.Fatalf("SetLogoutCutoff: %v", err)
	}
	if cutoff != 1000 {
		t.Fatalf("expected cutoff 1000, got %d", cutoff)
	}
	if raw, _ := mr.Get("logout_ts:42"); raw != "1000" {
		t.Fatalf("expected logout_ts:42=1000, got %q", raw)
	}
	if ttl := mr.TTL("logout_ts:42"); ttl != refreshTTL {
		t.Fatalf("expected ttl %s, got %s", refreshTTL, ttl)
	}

	now = 1500
	if _, err := store.SetLogoutCutoff(ctx, "42", refreshTTL); err != nil {
		t.Fatalf("SetLogoutCutoff: %v", err)
	}
	got, ok, err := store.GetLogoutCutoff(ctx, "42")
	if err != nil || !ok {
		t.Fatalf("GetLogoutCutoff: ok=%v err=%v", ok, err)
	}
	if got != 1500 {
		t.Fatalf("expected moved cutoff 1500, got %d", got)
	}
}

func TestCorruptCutoff(t *testing.T) {
	store, mr := newStoreTest(t)
	if err := mr.Set("logout_ts:7", "yesterday"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := store.GetLogoutCutoff(context.Background(), "7"); !errors.Is(err, ErrCorruptCutoff) {
		t.Fatalf("expected ErrCorruptCutoff, got %v", err)
	}
}

func TestPrefixNamespacesKeys(t *testing.T) {
	store, mr := newStoreTest(t, WithPrefix("pomo"))
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "abc", refreshTTL); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := store.SetLogoutCutoff(ctx, "1", refreshTTL); err != nil {
		t.Fatalf("SetLogoutCutoff: %v", err)
	}
	if !mr.Exists("pomo:revoked:abc") || !mr.Exists("pomo:logout_ts:1") {
		t.Fatalf("expected prefixed keys, have %v", mr.Keys())
	}
}

func TestInvalidTTL(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "abc", 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	if _, err := store.SetLogoutCutoff(ctx, "1", -time.Second); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store := NewStore(rdb)
	ctx := context.Background()
	mr.Close()

	if err := store.RevokeToken(ctx, "abc", refreshTTL); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("RevokeToken: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.IsTokenRevoked(ctx, "abc"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("IsTokenRevoked: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.SetLogoutCutoff(ctx, "1", refreshTTL); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("SetLogoutCutoff: expected ErrStoreUnavailable, got %v", err)
	}
	if _, _, err := store.GetLogoutCutoff(ctx, "1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("GetLogoutCutoff: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Ping: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestConcurrentRevocations(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.RevokeToken(ctx, "jti-"+strconv.Itoa(i), refreshTTL); err != nil {
				errs <- err
			}
			if _, err := store.SetLogoutCutoff(ctx, "shared", refreshTTL); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent op failed: %v", err)
	}

	for i := 0; i < workers; i++ {
		revoked, err := store.IsTokenRevoked(ctx, "jti-"+strconv.Itoa(i))
		if err != nil || !revoked {
			t.Fatalf("jti-%d: revoked=%v err=%v", i, revoked, err)
		}
	}
	if _, ok, err := store.GetLogoutCutoff(ctx, "shared"); err != nil || !ok {
		t.Fatalf("expected shared cutoff, ok=%v err=%v", ok, err)
	}
}
