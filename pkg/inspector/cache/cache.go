// Package cache provides the event spec cache: a capacity-bounded, TTL-expiring,
// LRU-evicting store keyed by (api key, stream id, event name).
//
// A cached value may be nil, which records that the service has no spec for
// the event, so repeated lookups for unknown events do not reach the network.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/inspector/pkg/inspector/observability"
	"github.com/randalmurphal/inspector/pkg/inspector/spec"
)

const (
	// DefaultTTL is how long an entry stays fresh.
	DefaultTTL = 60 * time.Second

	// DefaultCapacity is the maximum number of entries kept.
	DefaultCapacity = 50
)

// Key composes a cache key from its parts. Each part is length-prefixed, so
// distinct inputs never collide whatever characters they contain.
func Key(apiKey, streamID, eventName string) string {
	var b strings.Builder
	b.Grow(len(apiKey) + len(streamID) + len(eventName) + 16)
	for _, part := range [...]string{apiKey, streamID, eventName} {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// Entry is a cached spec plus its bookkeeping.
type Entry struct {
	// Spec is nil for a cached miss.
	Spec         *spec.Response
	CachedAt     time.Time
	LastAccessed time.Time
	HitCount     int

	// seq orders accesses that share a timestamp.
	seq uint64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries     int
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// SpecCache is safe for concurrent use. Every operation runs in a single
// critical section and never performs I/O while holding the lock.
type SpecCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	seq     uint64
	stats   Stats

	ttl      time.Duration
	capacity int
	now      func() time.Time
	metrics  observability.MetricsRecorder
	logger   *slog.Logger
}

// New creates a SpecCache.
func New(opts ...Option) *SpecCache {
	c := &SpecCache{
		entries:  make(map[string]*Entry),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
		metrics:  observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached spec for key. The bool is false when there is no
// entry or the entry is older than the TTL; an expired entry is removed.
// A live hit refreshes the entry's recency and hit count. A true result with
// a nil spec is a cached miss.
func (c *SpecCache) Get(key string) (*spec.Response, bool) {
	c.mu.Lock()
	now := c.now()
	entry, ok := c.entries[key]
	expired := ok && c.expired(entry, now)
	if expired {
		delete(c.entries, key)
		c.stats.Expirations++
	}
	if !ok || expired {
		c.stats.Misses++
		c.mu.Unlock()
		c.metrics.RecordCacheLookup(context.Background(), false)
		return nil, false
	}

	c.seq++
	entry.seq = c.seq
	entry.LastAccessed = now
	entry.HitCount++
	c.stats.Hits++
	resp := entry.Spec
	c.mu.Unlock()

	c.metrics.RecordCacheLookup(context.Background(), true)
	return resp, true
}

// Set stores resp under key, replacing any existing entry. A nil resp caches
// a miss. When the cache grows past capacity, expired entries are dropped
// first and then the least recently accessed ones.
func (c *SpecCache) Set(key string, resp *spec.Response) {
	c.mu.Lock()
	now := c.now()
	c.seq++
	c.entries[key] = &Entry{
		Spec:         resp,
		CachedAt:     now,
		LastAccessed: now,
		seq:          c.seq,
	}

	evicted := 0
	if c.capacity > 0 && len(c.entries) > c.capacity {
		for k, e := range c.entries {
			if c.expired(e, now) {
				delete(c.entries, k)
				c.stats.Expirations++
			}
		}
		for len(c.entries) > c.capacity {
			c.evictLRU()
			evicted++
		}
	}
	c.stats.Evictions += int64(evicted)
	size := len(c.entries)
	c.mu.Unlock()

	if evicted > 0 {
		observability.LogCacheEviction(c.logger, evicted, size)
		c.metrics.RecordCacheEvictions(context.Background(), int64(evicted))
	}
}

// Contains reports whether a live entry exists for key. It does not touch
// the entry's recency.
func (c *SpecCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return ok && !c.expired(entry, c.now())
}

// Clear drops every entry. Called when the active branch changes.
func (c *SpecCache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	observability.LogCacheCleared(c.logger, n)
}

// Len returns the number of stored entries, including expired ones not yet removed.
func (c *SpecCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *SpecCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Peek returns a copy of the entry for key without touching it.
// Expired entries are returned as-is.
func (c *SpecCache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (c *SpecCache) expired(e *Entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.CachedAt) > c.ttl
}

// evictLRU removes the entry with the oldest access. Must hold c.mu.
func (c *SpecCache) evictLRU() {
	var (
		oldestKey string
		oldest    *Entry
	)
	for k, e := range c.entries {
		if oldest == nil ||
			e.LastAccessed.Before(oldest.LastAccessed) ||
			(e.LastAccessed.Equal(oldest.LastAccessed) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
	}
}
