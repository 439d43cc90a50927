package session

import (
	"sync"
	"time"
)

// localCache is the bounded in-process mirror of the blacklist, kept so reads
// stay answerable while the backing store is down. All mutation goes through
// put, under one mutex, so size accounting cannot drift.
type localCache struct {
	mu         sync.Mutex
	now        func() time.Time
	data       map[string]time.Time
	maxEntries int
}

func newLocalCache(maxEntries int, now func() time.Time) *localCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if now == nil {
		now = time.Now
	}
	return &localCache{
		now:        now,
		data:       make(map[string]time.Time),
		maxEntries: maxEntries,
	}
}

func (c *localCache) put(jti string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[jti]; !ok && len(c.data) >= c.maxEntries {
		c.sweep(now)
		if len(c.data) >= c.maxEntries {
			// Still full of live entries: evict the soonest-expiring one.
			// Dropping a cache entry only weakens the fallback, never the
			// store itself.
			var victim string
			var victimExp time.Time
			for key, exp := range c.data {
				if victim == "" || exp.Before(victimExp) {
					victim, victimExp = key, exp
				}
			}
			delete(c.data, victim)
		}
	}
	c.data[jti] = now.Add(ttl)
}

func (c *localCache) contains(jti string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := c.data[jti]
	if !ok {
		return false
	}
	if now.After(exp) {
		delete(c.data, jti)
		return false
	}
	return true
}

func (c *localCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// sweep drops expired entries. Callers hold the mutex.
func (c *localCache) sweep(now time.Time) {
	for key, exp := range c.data {
		if now.After(exp) {
			delete(c.data, key)
		}
	}
}

// startSweeper sweeps on an interval for the life of the process, keeping
// the cache from carrying expired entries between capacity events.
func (c *localCache) startSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			c.mu.Lock()
			c.sweep(c.now())
			c.mu.Unlock()
		}
	}()
}
