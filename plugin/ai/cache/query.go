package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/skillgate/plugin/ai/truncate"
)

const (
	DefaultQueryMaxSize = 100
	DefaultQueryTTL     = time.Hour
)

// QueryCache is an exact-match LRU cache keyed on the normalized query.
// Expiry is checked lazily on read. It is not safe for concurrent use.
type QueryCache struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	items map[string]*list.Element
	order *list.List // front = most recently used

	hits   int64
	misses int64
}

type queryItem struct {
	key   string
	entry Entry
}

// NewQueryCache creates an exact cache. Non-positive limits use defaults.
func NewQueryCache(maxSize int, ttl time.Duration, opts ...Option) *QueryCache {
	if maxSize <= 0 {
		maxSize = DefaultQueryMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	o := buildOptions(opts)

	return &QueryCache{
		maxSize: maxSize,
		ttl:     ttl,
		now:     o.now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Key returns the cache key for a query: the hex SHA-256 of its trimmed,
// lower-cased form.
func Key(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the live entry for query and marks it most recently
// used. Expired entries are removed and count as misses.
func (c *QueryCache) Get(query string) (*Entry, bool) {
	key := Key(query)
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	item := el.Value.(*queryItem)
	if c.now().Sub(item.entry.CreatedAt) > c.ttl {
		c.removeElement(el)
		c.misses++
		slog.Debug("query cache entry expired", "query", truncate.Runes(query, 50))
		return nil, false
	}

	c.order.MoveToFront(el)
	item.entry.HitCount++
	c.hits++
	slog.Debug("query cache hit", "query", truncate.Runes(query, 50), "hit_count", item.entry.HitCount)

	e := item.entry
	return &e, true
}

// Set stores a response. Overwriting a key replaces the entry, resetting its
// creation time and hit count.
func (c *QueryCache) Set(query, response, skillName string) {
	key := Key(query)
	entry := Entry{
		Query:     query,
		Response:  response,
		SkillName: skillName,
		CreatedAt: c.now(),
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*queryItem).entry = entry
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&queryItem{key: key, entry: entry})
}

// Invalidate removes the entry for query and reports whether one existed.
func (c *QueryCache) Invalidate(query string) bool {
	el, ok := c.items[Key(query)]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Clear removes all entries. Counters are kept.
func (c *QueryCache) Clear() {
	c.items = make(map[string]*list.Element)
	c.order.Init()
	slog.Debug("query cache cleared")
}

// Len returns the number of stored entries, expired ones included.
func (c *QueryCache) Len() int {
	return len(c.items)
}

// CleanupExpired removes every expired entry and returns how many it removed.
func (c *QueryCache) CleanupExpired() int {
	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.Sub(el.Value.(*queryItem).entry.CreatedAt) > c.ttl {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Stats reports size and hit counters.
func (c *QueryCache) Stats() Stats {
	return Stats{
		Size:    len(c.items),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate(c.hits, c.misses),
	}
}

func (c *QueryCache) evictOldest() {
	if el := c.order.Back(); el != nil {
		c.removeElement(el)
		slog.Debug("query cache evicted oldest entry")
	}
}

func (c *QueryCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*queryItem).key)
}

