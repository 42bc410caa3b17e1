// Package cache holds the process-local topic cache that sits in front of the
// long-term memory search.
package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/pkg/metrics"
)

// DefaultTTL is how long a memory search result stays usable.
const DefaultTTL = 5 * time.Minute

type topicKey struct {
	userID string
	topic  string
}

type entry struct {
	results    []model.MemorySnippet
	insertedAt time.Time
}

// TopicCache maps (user, topic) to ranked memory results. Expired entries are
// evicted by the read that finds them; there is no sweeper.
type TopicCache struct {
	mu      sync.RWMutex
	entries map[topicKey]entry
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Collector
}

type Option func(*TopicCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *TopicCache) { c.now = now }
}

// WithMetrics reports hits, misses and evictions to m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *TopicCache) { c.metrics = m }
}

func NewTopicCache(ttl time.Duration, opts ...Option) *TopicCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TopicCache{
		entries: make(map[topicKey]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached results. A miss and an expired entry both report false.
func (c *TopicCache) Get(userID, topic string) ([]model.MemorySnippet, bool) {
	key := topicKey{userID: userID, topic: topic}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.miss()
		return nil, false
	}

	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.mu.Lock()
		// A concurrent Set may have refreshed the entry since the read lock was released.
		if cur, still := c.entries[key]; still && cur.insertedAt.Equal(e.insertedAt) {
			delete(c.entries, key)
			if c.metrics != nil {
				c.metrics.CacheEvictions.Inc()
			}
		}
		c.mu.Unlock()
		c.miss()
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
	return slices.Clone(e.results), true
}

// Set stores results for (user, topic). The last Set wins.
func (c *TopicCache) Set(userID, topic string, results []model.MemorySnippet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[topicKey{userID: userID, topic: topic}] = entry{
		results:    slices.Clone(results),
		insertedAt: c.now(),
	}
}

// Invalidate drops every entry of one user.
func (c *TopicCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.userID == userID {
			delete(c.entries, k)
		}
	}
}

// InvalidateAll empties the cache.
func (c *TopicCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[topicKey]entry)
}

// Len returns the number of stored entries, expired ones included.
func (c *TopicCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TopicCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}
