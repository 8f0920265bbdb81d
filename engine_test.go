package pomoAuth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/mail"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "pomoauth-test-secret-0123456789abcdef"

// testClock is a settable unix-second clock.
type testClock struct {
	mu   sync.Mutex
	unix int64
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.unix, 0)
}

func (c *testClock) Set(unix int64) {
	c.mu.Lock()
	c.unix = unix
	c.mu.Unlock()
}

// tokenIDs hands out queued ids, then numbered ones.
type tokenIDs struct {
	mu     sync.Mutex
	queued []string
	n      int
}

func (g *tokenIDs) Push(ids ...string) {
	g.mu.Lock()
	g.queued = append(g.queued, ids...)
	g.mu.Unlock()
}

func (g *tokenIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("jti-%d", g.n)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	return nil
}

func (s *recordingSender) Subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Subject)
	}
	return out
}

type testEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	repo  *account.MemoryRepository
	clock *testClock
	ids   *tokenIDs
	mail  *recordingSender
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t testing.TB, configure ...func(*Config, *Builder)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	te := &testEngine{
		mr:    mr,
		repo:  account.NewMemoryRepository(),
		clock: &testClock{unix: 1000},
		ids:   &tokenIDs{},
		mail:  &recordingSender{},
	}

	cfg := testConfig()
	b := New().
		WithRedis(rdb).
		WithAccountRepository(te.repo).
		WithMailSender(te.mail).
		WithClock(te.clock.Now).
		WithTokenIDGenerator(te.ids.Next)
	for _, fn := range configure {
		fn(&cfg, b)
	}
	b.WithConfig(cfg)

	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	te.Engine = e
	return te
}

// seed stores a password account directly in the repository.
func (te *testEngine) seed(t testing.TB, username, password string) account.Account {
	t.Helper()
	hash, err := te.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	acc := account.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	if err := te.repo.Insert(context.Background(), &acc); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return acc
}

func (te *testEngine) login(t testing.TB, username, password string, jti ...string) *TokenPair {
	t.Helper()
	te.ids.Push(jti...)
	pair, err := te.Login(context.Background(), username, password)
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return pair
}
