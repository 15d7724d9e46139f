package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestLock(t *testing.T) (*distributedLock, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newRedisStore(rdb, zap.NewNop())
	return newDistributedLock(store, zap.NewNop()), mr
}

func TestTryLockAcquiresAndBlocksSecondHolder(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	h1, ok1 := lock.TryLock(ctx, "r", time.Second)
	if !ok1 {
		t.Fatal("expected first TryLock to succeed")
	}

	_, ok2 := lock.TryLock(ctx, "r", time.Second)
	if ok2 {
		t.Fatal("expected second TryLock to fail while first holds the lock")
	}

	lock.Unlock(ctx, h1)

	_, ok3 := lock.TryLock(ctx, "r", time.Second)
	if !ok3 {
		t.Fatal("expected TryLock to succeed after unlock")
	}
}

func TestUnlockIsFencedByToken(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	h1, ok := lock.TryLock(ctx, "r", 50*time.Millisecond)
	if !ok {
		t.Fatal("expected TryLock to succeed")
	}

	// Simulate the lock's TTL expiring and a second holder taking over.
	mr.FastForward(100 * time.Millisecond)
	h2, ok := lock.TryLock(ctx, "r", time.Second)
	if !ok {
		t.Fatal("expected second TryLock to succeed after expiry")
	}

	// h1's later Unlock must not delete h2's lock record: its token no
	// longer matches, so the stale unlock is a no-op.
	lock.Unlock(ctx, h1)

	_, ok3 := lock.TryLock(ctx, "r", time.Second)
	if ok3 {
		t.Fatal("expected h2's lock to still be held; h1's stale unlock must not have deleted it")
	}

	lock.Unlock(ctx, h2)
}

func TestUnlockOnZeroHandleIsNoop(t *testing.T) {
	lock, _ := newTestLock(t)
	lock.Unlock(context.Background(), LockHandle{})
	// No panic, no held lock created — nothing further to assert.
}

func TestWaitForLockSucceedsOnceHolderReleases(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	h1, ok := lock.TryLock(ctx, "r", time.Second)
	if !ok {
		t.Fatal("expected TryLock to succeed")
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		lock.Unlock(ctx, h1)
	}()

	h2, ok := lock.WaitForLock(ctx, "r", time.Second, time.Second, 10*time.Millisecond)
	if !ok {
		t.Fatal("expected WaitForLock to eventually succeed")
	}
	lock.Unlock(ctx, h2)
}

func TestWaitForLockTimesOut(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	h1, ok := lock.TryLock(ctx, "r", 5*time.Second)
	if !ok {
		t.Fatal("expected TryLock to succeed")
	}
	defer lock.Unlock(ctx, h1)

	start := time.Now()
	_, ok = lock.WaitForLock(ctx, "r", time.Second, 80*time.Millisecond, 10*time.Millisecond)
	if ok {
		t.Fatal("expected WaitForLock to time out while holder keeps the lock")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected WaitForLock to honor timeout, returned after only %v", elapsed)
	}
}

func TestWaitForLockHonorsCancellation(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx, cancel := context.WithCancel(context.Background())

	h1, ok := lock.TryLock(context.Background(), "r", 5*time.Second)
	if !ok {
		t.Fatal("expected TryLock to succeed")
	}
	defer lock.Unlock(context.Background(), h1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		_, ok := lock.WaitForLock(ctx, "r", time.Second, 5*time.Second, 10*time.Millisecond)
		acquired.Store(ok)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForLock did not return promptly after cancellation")
	}
	if acquired.Load() {
		t.Error("expected WaitForLock to report failure after cancellation")
	}
}

func TestOnlyOneHolderAtATime(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	var holders atomic.Int32
	var violations atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 20; i++ {
		go func() {
			defer func() {
				done <- struct{}{}
			}()
			h, ok := lock.WaitForLock(ctx, "shared", time.Second, 2*time.Second, 5*time.Millisecond)
			if !ok {
				return
			}
			if holders.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			holders.Add(-1)
			lock.Unlock(ctx, h)
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	if violations.Load() != 0 {
		t.Errorf("observed %d moments with more than one holder", violations.Load())
	}
}
