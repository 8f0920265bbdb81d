package httpapi

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/pomoAuth/internal/logging"
	"golang.org/x/time/rate"
)

const (
	defaultMaxClients   = 10000
	limiterIdleTimeout  = 30 * time.Minute
	limiterCleanupEvery = 5 * time.Minute
)

type clientLimiter struct {
	ip         string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPLimiter is a per-client-IP token bucket. The least recently seen client
// is evicted once maxClients are tracked.
type IPLimiter struct {
	mu         sync.Mutex
	clients    map[string]*list.Element
	lru        *list.List
	limit      rate.Limit
	burst      int
	maxClients int
	logger     *slog.Logger
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
	evictions  int64
}

// NewIPLimiter allows rps requests per second per client with the given
// burst, and starts the idle cleanup loop. Call Stop when done.
func NewIPLimiter(rps, burst, maxClients int, logger *slog.Logger) *IPLimiter {
	l := newIPLimiter(rps, burst, maxClients, logger, time.Now)
	go l.cleanupLoop()
	return l
}

func newIPLimiter(rps, burst, maxClients int, logger *slog.Logger, now func() time.Time) *IPLimiter {
	if logger == nil {
		logger = logging.Discard()
	}
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	return &IPLimiter{
		clients:    make(map[string]*list.Element),
		lru:        list.New(),
		limit:      rate.Limit(rps),
		burst:      burst,
		maxClients: maxClients,
		logger:     logger,
		now:        now,
		stop:       make(chan struct{}),
	}
}

// Allow reports whether ip may make one more request now.
func (l *IPLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.clients[ip]; ok {
		l.lru.MoveToFront(elem)
		c := elem.Value.(*clientLimiter)
		c.lastAccess = now
		return c.limiter.AllowN(now, 1)
	}

	if len(l.clients) >= l.maxClients {
		l.evictOldest()
	}
	c := &clientLimiter{ip: ip, limiter: rate.NewLimiter(l.limit, l.burst), lastAccess: now}
	l.clients[ip] = l.lru.PushFront(c)
	return c.limiter.AllowN(now, 1)
}

// must hold l.mu
func (l *IPLimiter) evictOldest() {
	elem := l.lru.Back()
	if elem == nil {
		return
	}
	c := elem.Value.(*clientLimiter)
	delete(l.clients, c.ip)
	l.lru.Remove(elem)
	l.evictions++
	l.logger.Debug("rate limiter eviction", "ip", c.ip, "evictions", l.evictions)
}

// Cleanup drops clients idle for longer than maxIdle.
func (l *IPLimiter) Cleanup(maxIdle time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for elem := l.lru.Back(); elem != nil; {
		prev := elem.Prev()
		c := elem.Value.(*clientLimiter)
		if now.Sub(c.lastAccess) <= maxIdle {
			break
		}
		delete(l.clients, c.ip)
		l.lru.Remove(elem)
		removed++
		elem = prev
	}
	if removed > 0 {
		l.logger.Debug("rate limiter cleanup", "removed", removed, "remaining", len(l.clients))
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *IPLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *IPLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup(limiterIdleTimeout)
		case <-l.stop:
			return
		}
	}
}
