// Command revocation-loadtest measures token validation and revocation
// throughput against a Redis revocation store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/pomoAuth/jwt"
	"github.com/MrEthical07/pomoAuth/revocation"
	"github.com/MrEthical07/pomoAuth/security"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type issued struct {
	pair    security.TokenPair
	subject string
}

func main() {
	var (
		pairs       = flag.Int("pairs", 50000, "number of token pairs to issue")
		subjects    = flag.Int("subjects", 5000, "number of distinct account ids")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		revokeRatio = flag.Float64("revoke-ratio", 0.1, "share of pairs revoked individually")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "revocation key prefix")
	)
	flag.Parse()

	if *pairs <= 0 || *subjects <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "pairs, subjects, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *revokeRatio < 0 || *revokeRatio > 1 {
		fmt.Fprintln(os.Stderr, "revoke-ratio must be within [0, 1]")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := revocation.NewStore(client, revocation.WithPrefix(*prefix))
	codec, err := jwt.NewCodec(jwt.Config{Secret: []byte("revocation-loadtest-secret-0123456789")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "codec: %v\n", err)
		os.Exit(1)
	}
	svc, err := security.NewService(codec, store, security.Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "service: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("issuing %d pairs over %d subjects...\n", *pairs, *subjects)
	startIssue := time.Now()
	tokens := make([]issued, *pairs)
	for i := range tokens {
		sub := strconv.Itoa(i%*subjects + 1)
		pair, err := svc.IssuePair(security.Principal{Subject: sub, Username: "user" + sub, Email: "user" + sub + "@example.com"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = issued{pair: pair, subject: sub}
	}
	fmt.Printf("issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	revokeCount := int(float64(*pairs) * *revokeRatio)
	revokeStats := runPhase(*concurrency, revokeCount, func(r *rand.Rand, i int) error {
		return svc.RevokeOne(ctx, tokens[i].pair.TokenID)
	})

	var revokedSeen int64
	validateStats := runPhase(*concurrency, *ops, func(r *rand.Rand, _ int) error {
		t := tokens[r.Intn(len(tokens))]
		_, err := svc.Validate(ctx, t.pair.AccessToken, jwt.TypeAccess)
		if errors.Is(err, security.ErrTokenRevoked) {
			atomic.AddInt64(&revokedSeen, 1)
			return nil
		}
		return err
	})

	logoutStats := runPhase(*concurrency, *subjects, func(r *rand.Rand, i int) error {
		return svc.RevokeAll(ctx, strconv.Itoa(i+1))
	})

	var cutoffSeen int64
	postLogoutStats := runPhase(*concurrency, *ops, func(r *rand.Rand, _ int) error {
		t := tokens[r.Intn(len(tokens))]
		_, err := svc.Validate(ctx, t.pair.RefreshToken, jwt.TypeRefresh)
		if errors.Is(err, security.ErrTokenRevoked) {
			atomic.AddInt64(&cutoffSeen, 1)
			return nil
		}
		if err == nil {
			return errors.New("token accepted after logout-all")
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("revoke", revokeStats)
	printStats("validate", validateStats)
	fmt.Printf("validate: revoked=%d\n", revokedSeen)
	printStats("logout-all", logoutStats)
	printStats("validate-after-logout-all", postLogoutStats)
	fmt.Printf("validate-after-logout-all: revoked=%d\n", cutoffSeen)
}

// runPhase executes op n times across concurrency workers. op receives the
// operation index.
func runPhase(concurrency, n int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, n)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
