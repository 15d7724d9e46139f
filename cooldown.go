package cache

import (
	"sync"
	"time"
)

// cooldownTracker is a supplemental throttle in the spirit of a
// shouldRefreshNow/setLastRefreshNow guard. It strengthens, never
// replaces, the refreshTracker's atomic single-flight: even if the
// in-flight marker has already been cleared, a key that was just refreshed
// won't re-enter the refresh path again within RefreshCooldown. Disabled
// entirely when the cooldown is zero, which is the unmodified default.
type cooldownTracker struct {
	mu        sync.Mutex
	lastByKey map[string]time.Time
	cooldown  time.Duration
}

func newCooldownTracker(cooldown time.Duration) *cooldownTracker {
	return &cooldownTracker{lastByKey: make(map[string]time.Time), cooldown: cooldown}
}

func (c *cooldownTracker) ready(key string) bool {
	if c.cooldown <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastByKey[key]
	if !ok {
		return true
	}
	return time.Since(last) >= c.cooldown
}

func (c *cooldownTracker) mark(key string) {
	if c.cooldown <= 0 {
		return
	}
	c.mu.Lock()
	c.lastByKey[key] = time.Now()
	c.mu.Unlock()
}
