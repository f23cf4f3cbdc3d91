package service

import (
	"sync"
	"time"

	"github.com/solatis/ruletree/internal/rule"
	"github.com/solatis/ruletree/internal/types"
)

// ruleCache holds materialized rules keyed by ID.
// A TTL of 0 means entries only leave on invalidation.
//
// Every invalidation bumps gen. Readers take gen before loading a record and
// pass it to put, which drops the entry if an invalidation happened in
// between, so a record read before an update is never cached after it.
type ruleCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	gen     uint64
	entries map[types.RuleID]cacheEntry
}

type cacheEntry struct {
	rule      *rule.Rule
	updatedAt time.Time
	cachedAt  time.Time
}

func newRuleCache(ttl time.Duration) *ruleCache {
	return &ruleCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[types.RuleID]cacheEntry),
	}
}

// get returns a cached rule that has not expired.
func (c *ruleCache) get(id types.RuleID) (*rule.Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || c.expired(e) {
		return nil, false
	}
	return e.rule, true
}

// getFresh returns a cached rule built from the same revision as rec.
func (c *ruleCache) getFresh(rec types.RuleRecord) (*rule.Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[rec.ID]
	if !ok || c.expired(e) || !e.updatedAt.Equal(rec.UpdatedAt) {
		return nil, false
	}
	return e.rule, true
}

// generation returns the invalidation counter to pass to put.
func (c *ruleCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// put caches r unless an invalidation happened since gen was taken or a
// newer revision is already cached. It reports whether r was stored.
func (c *ruleCache) put(gen uint64, rec types.RuleRecord, r *rule.Rule) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	if e, ok := c.entries[rec.ID]; ok && e.updatedAt.After(rec.UpdatedAt) {
		return false
	}
	c.entries[rec.ID] = cacheEntry{rule: r, updatedAt: rec.UpdatedAt, cachedAt: c.now()}
	return true
}

func (c *ruleCache) invalidate(id types.RuleID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.entries, id)
}

func (c *ruleCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ruleCache) expired(e cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.cachedAt) > c.ttl
}
