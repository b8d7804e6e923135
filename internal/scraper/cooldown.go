package scraper

import (
	"sync"
	"time"
)

// Cooldown is the global backoff window set when the upstream signals
// throttling. It is shared state passed explicitly to whoever needs it so
// tests can inspect and reset it deterministically. While active, no title is
// scraped at all; being throttled is a property of the whole process, not of
// the title that happened to trip it.
type Cooldown struct {
	mu    sync.Mutex
	until time.Time
}

// NewCooldown returns an inactive cooldown.
func NewCooldown() *Cooldown {
	return &Cooldown{}
}

// Set activates the cooldown for the given duration from now. A shorter
// duration never truncates an already-active longer window.
func (c *Cooldown) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(c.until) {
		c.until = until
	}
}

// Active reports whether the cooldown is currently in force.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.until)
}

// Remaining returns how long until the cooldown expires, or zero when
// inactive.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := time.Until(c.until)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Until returns the expiry instant, zero when never set.
func (c *Cooldown) Until() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until
}

// Reset clears the cooldown immediately.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = time.Time{}
}
