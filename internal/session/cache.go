// Package session implements the routing core's session stickiness cache: a
// bounded, TTL-expiring map from conversation id to the model it was last
// routed to.
package session

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a sticky entry stays valid.
	DefaultTTL = 1800 * time.Second
	// HardCap is the point at which a sweep trims the cache down to SoftCap.
	HardCap = 1000
	// SoftCap is the size a full trim reduces the cache to.
	SoftCap = 800
	// SweepEvery triggers an expiry sweep every this many writes.
	SweepEvery = 100
)

type entry struct {
	model string
	at    time.Time
}

// Cache is a bounded, mutex-guarded conversation-id -> model map.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	writes  int
	now     func() time.Time
}

// New creates a Cache with the given TTL. A zero TTL uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the sticky model for conversationID if a fresh (age < TTL)
// entry exists.
func (c *Cache) Get(conversationID string) (model string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[conversationID]
	if !found {
		return "", false
	}
	if c.now().Sub(e.at) >= c.ttl {
		delete(c.entries, conversationID)
		return "", false
	}
	return e.model, true
}

// Set records the sticky model for conversationID, triggering an expiry
// sweep every SweepEvery writes and a hard-cap trim if the cache has grown
// past HardCap.
func (c *Cache) Set(conversationID, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[conversationID] = entry{model: model, at: c.now()}
	c.writes++

	if c.writes%SweepEvery == 0 {
		c.sweepLocked()
	}
	if len(c.entries) > HardCap {
		c.trimLocked()
	}
}

// Len reports the current entry count. Intended for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) sweepLocked() {
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.at) >= c.ttl {
			delete(c.entries, id)
		}
	}
}

// trimLocked drops the oldest-by-timestamp entries until the cache size
// falls to SoftCap.
func (c *Cache) trimLocked() {
	if len(c.entries) <= SoftCap {
		return
	}
	type idAt struct {
		id string
		at time.Time
	}
	ordered := make([]idAt, 0, len(c.entries))
	for id, e := range c.entries {
		ordered = append(ordered, idAt{id, e.at})
	}
	// Simple selection of oldest entries to evict; cache sizes here are
	// bounded (≤ HardCap+SweepEvery) so an O(n log n) sort is cheap.
	for i := 1; i < len(ordered); i++ {
		j := i
		for j > 0 && ordered[j].at.Before(ordered[j-1].at) {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
			j--
		}
	}
	toDrop := len(c.entries) - SoftCap
	for i := 0; i < toDrop; i++ {
		delete(c.entries, ordered[i].id)
	}
}
