package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// InMemoryLimiter keeps one token bucket per key. Buckets idle for longer
// than idle are dropped on the next Allow.
type InMemoryLimiter struct {
	mu    sync.Mutex
	keys  map[string]*entry
	r     rate.Limit
	b     int
	idle  time.Duration
	clock clockwork.Clock
}

// NewInMemoryLimiter allows requests per interval with bursts of burst.
// NewInMemoryLimiter(5, time.Minute, 3) lets a key send 3 at once and then
// one every 12 seconds.
func NewInMemoryLimiter(requests int, per time.Duration, burst int, clock clockwork.Clock) *InMemoryLimiter {
	if requests < 1 {
		requests = 1
	}
	if burst < 1 {
		burst = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryLimiter{
		keys:  make(map[string]*entry),
		r:     rate.Every(per / time.Duration(requests)),
		b:     burst,
		idle:  10 * per,
		clock: clock,
	}
}

func (l *InMemoryLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.evictLocked(now)

	e, ok := l.keys[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.r, l.b)}
		l.keys[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Len reports how many keys currently hold a bucket.
func (l *InMemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *InMemoryLimiter) evictLocked(now time.Time) {
	if l.idle <= 0 {
		return
	}
	for k, e := range l.keys {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.keys, k)
		}
	}
}
