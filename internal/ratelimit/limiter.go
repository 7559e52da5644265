// Package ratelimit bounds concurrency and pacing of calls to each data source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Policy configures one source's limiter.
type Policy struct {
	// Concurrency is the maximum number of in-flight calls. Default: 10.
	Concurrency int
	// Cooldown delays the return of a slot after release.
	Cooldown time.Duration
	// RatePerSec caps call starts per second. Zero disables the cap.
	RatePerSec float64
}

// DefaultPolicy applies to sources without an explicit policy.
func DefaultPolicy() Policy {
	return Policy{Concurrency: 10}
}

// Limiter admits calls to a single source.
type Limiter struct {
	policy Policy
	sem    *semaphore.Weighted
	bucket *rate.Limiter
}

// NewLimiter creates a Limiter for p.
func NewLimiter(p Policy) *Limiter {
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultPolicy().Concurrency
	}
	l := &Limiter{
		policy: p,
		sem:    semaphore.NewWeighted(int64(p.Concurrency)),
	}
	if p.RatePerSec > 0 {
		burst := max(int(p.RatePerSec), 1)
		l.bucket = rate.NewLimiter(rate.Limit(p.RatePerSec), burst)
	}
	return l
}

// Acquire blocks until a slot is free or ctx is done. Waiters are admitted
// in FIFO order. The returned release is safe to call more than once; it
// hands the slot back after the cooldown without blocking the caller.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "ratelimit: acquire slot")
	}
	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			l.sem.Release(1)
			return nil, eris.Wrap(err, "ratelimit: wait for token")
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if l.policy.Cooldown <= 0 {
				l.sem.Release(1)
				return
			}
			time.AfterFunc(l.policy.Cooldown, func() { l.sem.Release(1) })
		})
	}
	return release, nil
}

// Policy returns the limiter's effective policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Registry holds one Limiter per source.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	fallback Policy
}

// NewRegistry creates limiters for each configured source. Unknown sources
// get a DefaultPolicy limiter on first use.
func NewRegistry(policies map[string]Policy) *Registry {
	r := &Registry{
		limiters: make(map[string]*Limiter, len(policies)),
		fallback: DefaultPolicy(),
	}
	for src, p := range policies {
		r.limiters[src] = NewLimiter(p)
	}
	return r
}

// Get returns the limiter for source, creating one if needed.
func (r *Registry) Get(source string) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[source]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.limiters[source]; ok {
		return l
	}
	l = NewLimiter(r.fallback)
	r.limiters[source] = l
	return l
}

// Acquire admits one call to source.
func (r *Registry) Acquire(ctx context.Context, source string) (func(), error) {
	return r.Get(source).Acquire(ctx)
}
