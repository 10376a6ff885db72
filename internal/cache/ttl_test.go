package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func counter() (LoadFunc[int], *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (int, error) { return int(n.Add(1)), nil }, &n
}

func TestTTLServesCachedValueUntilExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	load, calls := counter()
	c := NewTTL(300*time.Second, load, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx)
		if err != nil || v != 1 {
			t.Fatalf("Get #%d: expected 1, got %d %v", i, v, err)
		}
	}
	clk.Advance(299 * time.Second)
	if v, _ := c.Get(ctx); v != 1 {
		t.Fatalf("expected cached value before expiry, got %d", v)
	}
	clk.Advance(time.Second)
	if v, _ := c.Get(ctx); v != 2 {
		t.Fatalf("expected reload at expiry, got %d", v)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 loads, got %d", calls.Load())
	}
	want := Stats{Hits: 3, Misses: 2, Loads: 2}
	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	exp, ok := c.ExpiresAt()
	if !ok || !exp.Equal(clk.Now().Add(300*time.Second)) {
		t.Fatalf("unexpected expiry %v %v", exp, ok)
	}
}

func TestTTLDoesNotCacheFailures(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	boom := errors.New("boom")
	var calls atomic.Int32
	c := NewTTL(time.Minute, func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "empty", boom
		}
		return "data", nil
	}, clk)

	v, err := c.Get(context.Background())
	if !errors.Is(err, boom) || v != "empty" {
		t.Fatalf("expected failure value and error, got %q %v", v, err)
	}
	if _, _, ok := c.Peek(); ok {
		t.Fatalf("failed load must not be cached")
	}
	v, err = c.Get(context.Background())
	if err != nil || v != "data" {
		t.Fatalf("expected retry to succeed, got %q %v", v, err)
	}
	if s := c.Stats(); s.Failures != 1 || s.Loads != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestTTLInvalidate(t *testing.T) {
	load, calls := counter()
	c := NewTTL(time.Hour, load, nil)
	ctx := context.Background()
	_, _ = c.Get(ctx)
	c.Invalidate()
	if v, _ := c.Get(ctx); v != 2 || calls.Load() != 2 {
		t.Fatalf("expected reload after Invalidate, got %d (%d loads)", v, calls.Load())
	}
}

func TestTTLConcurrentMissesShareOneLoad(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewTTL(time.Hour, func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}, nil)

	const n = 16
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background())
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", calls.Load())
	}
	for i, v := range results {
		if v != 42 {
			t.Fatalf("caller %d got %d", i, v)
		}
	}
}

func TestTTLCallerCancellationDoesNotAbortLoad(t *testing.T) {
	c := NewTTL(time.Hour, func(ctx context.Context) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if v, err := c.Get(ctx); err != nil || v != 7 {
		t.Fatalf("expected load to ignore caller cancellation, got %d %v", v, err)
	}
}
