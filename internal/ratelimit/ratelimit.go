// Package ratelimit decides whether a client may make another request.
//
// Two implementations share the Limiter interface:
//   - Memory: a token bucket per key (golang.org/x/time/rate), local to the
//     process. Fine for a single API instance.
//   - Redis: a fixed one-minute window counted in Redis, shared by every
//     instance pointing at the same Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the client should wait. Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter is implemented by Memory and Redis.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// idleTTL is how long an unused key's bucket is kept before it is swept.
const idleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per key. A bucket holds perMinute tokens and
// refills at perMinute per minute, so a client may burst up to the full
// minute's allowance and is then paced.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]*entry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func NewMemory(perMinute int) *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	e, ok := m.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, RetryAfter: time.Minute}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// Give the token back: a refused request must not use up future capacity.
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

// sweep drops idle buckets at most once per idleTTL. Caller holds m.mu.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < idleTTL {
		return
	}
	m.lastSweep = now
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(m.entries, k)
		}
	}
}
