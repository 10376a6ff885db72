// Package cache holds a single read-through value that expires a fixed time
// after it was loaded.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// LoadFunc produces a fresh value. A non-nil error means the value must not
// be cached; it is still handed to the caller.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Stats are cumulative counters since construction.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Loads    int64 `json:"loads"`
	Failures int64 `json:"failures"`
}

// TTL caches the result of a LoadFunc for a fixed duration measured from the
// moment the load finished. Concurrent misses share one load. Failed loads
// are never cached, so the next Get tries again.
type TTL[T any] struct {
	ttl   time.Duration
	load  LoadFunc[T]
	clock Clock

	mu       sync.RWMutex
	value    T
	loadedAt time.Time
	valid    bool

	flight singleflight.Group

	hits, misses, loads, failures atomic.Int64
}

// NewTTL returns an empty cache. A nil clock means the wall clock.
func NewTTL[T any](ttl time.Duration, load LoadFunc[T], clock Clock) *TTL[T] {
	if clock == nil {
		clock = SystemClock
	}
	return &TTL[T]{ttl: ttl, load: load, clock: clock}
}

// Get returns the cached value while it is fresh, otherwise loads a new one.
func (c *TTL[T]) Get(ctx context.Context) (T, error) {
	if v, ok := c.fresh(); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	res, err, _ := c.flight.Do("load", func() (any, error) {
		// another caller may have filled the slot while we waited
		if v, ok := c.fresh(); ok {
			return v, nil
		}
		c.loads.Add(1)
		// one caller giving up must not fail the others sharing this load
		v, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			c.failures.Add(1)
			return v, err
		}
		c.mu.Lock()
		c.value, c.loadedAt, c.valid = v, c.clock.Now(), true
		c.mu.Unlock()
		return v, nil
	})
	v, _ := res.(T)
	return v, err
}

func (c *TTL[T]) fresh() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid || c.clock.Now().Sub(c.loadedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Peek returns the cached value and its load time without loading.
func (c *TTL[T]) Peek() (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.loadedAt, c.valid
}

// ExpiresAt reports when the current value goes stale. ok is false when
// nothing is cached.
func (c *TTL[T]) ExpiresAt() (at time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return time.Time{}, false
	}
	return c.loadedAt.Add(c.ttl), true
}

// Invalidate drops the cached value so the next Get loads again.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	var zero T
	c.value, c.loadedAt, c.valid = zero, time.Time{}, false
	c.mu.Unlock()
}

func (c *TTL[T]) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Loads:    c.loads.Load(),
		Failures: c.failures.Load(),
	}
}
