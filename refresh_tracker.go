package cache

import (
	"sync"
	"time"
)

// refreshTracker is the process-local refresh-in-flight set. Test-and-add
// must be a single atomic operation, so TryMark is built on
// sync.Map.LoadOrStore rather than a mutex-guarded map-lookup-then-insert.
//
// A bounded safety TTL backs every entry: if a background task is ever
// killed before its deferred cleanup runs (process crash aside, a leak is
// still possible if a goroutine is abandoned rather than awaited), the
// marker expires on its own instead of permanently blocking future
// revalidation of that key.
type refreshTracker struct {
	entries sync.Map // key -> expireAt time.Time
	ttl     time.Duration
}

func newRefreshTracker(ttl time.Duration) *refreshTracker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &refreshTracker{ttl: ttl}
}

// TryMark atomically marks key as having an in-flight refresh. It returns
// true if the caller won the race and should schedule the background task,
// false if one is already in flight (or was, and hasn't expired yet).
func (rt *refreshTracker) TryMark(key string) bool {
	now := time.Now()
	expireAt, loaded := rt.entries.LoadOrStore(key, now.Add(rt.ttl))
	if !loaded {
		return true
	}
	if now.After(expireAt.(time.Time)) {
		// Stale marker from a leaked task; reclaim it. CompareAndSwap keeps
		// the reclaim atomic, so only one concurrent caller wins it.
		return rt.entries.CompareAndSwap(key, expireAt, now.Add(rt.ttl))
	}
	return false
}

// Clear removes the in-flight marker. Called unconditionally from the
// background task's finally-block equivalent (a deferred func), whether the
// task succeeded, failed, or never acquired the lock.
func (rt *refreshTracker) Clear(key string) {
	rt.entries.Delete(key)
}
