package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newJitterLockStrategy(t *testing.T, cfg Config) *JitterLockCacheStrategy[string] {
	store, _, _ := newTestStore(t)
	return NewJitterLockCacheStrategy[string](store, cfg, nil)
}

// TestJitterLockStampedeCold covers N concurrent callers on a cold key
// with a loader that sleeps; the loader must be invoked exactly once and
// every caller gets the same value.
func TestJitterLockStampedeCold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockTimeout = time.Second
	cfg.LockRetryInterval = 5 * time.Millisecond
	cfg.LockMaxRetries = 100 // 500ms budget, well above the loader's 50ms
	s := newJitterLockStrategy(t, cfg)

	var calls atomic.Int32
	loader := func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "V", true, nil
	}

	const n = 10
	results := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := s.GetOrLoad(context.Background(), sharedStampedeKey(t), loader)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
				return
			}
			results[i] = res.Value
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader invoked %d times, want exactly 1", calls.Load())
	}
	for i, v := range results {
		if v != "V" {
			t.Errorf("result[%d] = %q, want %q", i, v, "V")
		}
	}
}

// sharedStampedeKey returns the same key for every call within a test run,
// letting all concurrent goroutines contend on one resource — an actual
// cache stampede.
func sharedStampedeKey(t *testing.T) string {
	t.Helper()
	return "stampede-key"
}

func TestJitterLockFallbackOnLockTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockTimeout = time.Second
	cfg.LockRetryInterval = 5 * time.Millisecond
	cfg.LockMaxRetries = 4 // ~20ms total wait budget
	s := newJitterLockStrategy(t, cfg)

	ctx := context.Background()
	// Hold the lock externally for longer than the wait budget.
	externalHandle, ok := s.b.lock.TryLock(ctx, s.b.refreshResource("k"), 2*time.Second)
	if !ok {
		t.Fatal("expected external TryLock to succeed")
	}
	defer s.b.lock.Unlock(ctx, externalHandle)

	var calls atomic.Int32
	res, err := s.GetOrLoad(ctx, "k", func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		return "fallback-value", true, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if res.Value != "fallback-value" {
		t.Errorf("Value = %q, want %q", res.Value, "fallback-value")
	}
	if calls.Load() != 1 {
		t.Errorf("loader invoked %d times, want exactly 1 (direct fallback)", calls.Load())
	}
}

func TestJitterLockFallbackDisabledReturnsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockTimeout = time.Second
	cfg.LockRetryInterval = 5 * time.Millisecond
	cfg.LockMaxRetries = 4
	cfg.DisableLockTimeoutFallback = true
	s := newJitterLockStrategy(t, cfg)

	ctx := context.Background()
	externalHandle, ok := s.b.lock.TryLock(ctx, s.b.refreshResource("k"), 2*time.Second)
	if !ok {
		t.Fatal("expected external TryLock to succeed")
	}
	defer s.b.lock.Unlock(ctx, externalHandle)

	_, err := s.GetOrLoad(ctx, "k", func(ctx context.Context) (string, bool, error) {
		return "", false, nil
	})
	if err != ErrLockUnavailable {
		t.Errorf("err = %v, want ErrLockUnavailable", err)
	}
}

func TestJitterLockDoubleCheckAfterAcquire(t *testing.T) {
	// A peer populates the cache while we wait for the lock; once acquired
	// we must return the peer's value instead of calling the loader again.
	cfg := DefaultConfig()
	cfg.LockTimeout = time.Second
	cfg.LockRetryInterval = 5 * time.Millisecond
	cfg.LockMaxRetries = 200
	s := newJitterLockStrategy(t, cfg)
	ctx := context.Background()

	resource := s.b.refreshResource("k")
	externalHandle, ok := s.b.lock.TryLock(ctx, resource, 200*time.Millisecond)
	if !ok {
		t.Fatal("expected external TryLock to succeed")
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = s.b.writeBare(ctx, "k", "peer-value", cfg.BaseTTL)
		s.b.lock.Unlock(ctx, externalHandle)
	}()

	var calls atomic.Int32
	res, err := s.GetOrLoad(ctx, "k", func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		return "should-not-be-used", true, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if res.Value != "peer-value" {
		t.Errorf("Value = %q, want %q (double-check should have found the peer's write)", res.Value, "peer-value")
	}
	if calls.Load() != 0 {
		t.Errorf("loader invoked %d times, want 0", calls.Load())
	}
}

func TestJitterLockUniqueTokensPerAcquisition(t *testing.T) {
	// Sanity check that lock tokens are actually random, not reused.
	s := newJitterLockStrategy(t, DefaultConfig())
	ctx := context.Background()
	a, okA := s.b.lock.TryLock(ctx, "token-a", time.Second)
	b, okB := s.b.lock.TryLock(ctx, "token-b", time.Second)
	if !okA || !okB {
		t.Fatal("expected both TryLock calls to succeed")
	}
	defer s.b.lock.Unlock(ctx, a)
	defer s.b.lock.Unlock(ctx, b)
	if a.token == b.token {
		t.Fatal("expected distinct tokens")
	}
}
