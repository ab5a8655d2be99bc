package feed

import (
	"container/list"
	"sync"
	"time"
)

const (
	summaryCacheMaxEntries = 1024
	summaryCacheTTL        = 24*time.Hour + fetchGracePeriod
)

// summaryCache is an LRU of summaries with per-entry expiry. Sources repeat the
// same entries on every cycle, so summarizing them again would be wasted work.
type summaryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type summaryCacheEntry struct {
	key       string
	summary   string
	expiresAt time.Time
}

func newSummaryCache(maxEntries int) *summaryCache {
	if maxEntries <= 0 {
		return nil
	}

	return &summaryCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *summaryCache) get(key string, now time.Time) (string, bool) {
	if c == nil || key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}

	entry := elem.Value.(*summaryCacheEntry) //nolint:forcetypeassert // only entries are stored

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return "", false
	}

	c.order.MoveToFront(elem)

	return entry.summary, true
}

func (c *summaryCache) set(key, summary string, expiresAt, now time.Time) {
	if c == nil || key == "" || summary == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*summaryCacheEntry) //nolint:forcetypeassert // only entries are stored
		entry.summary = summary
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	c.entries[key] = c.order.PushFront(&summaryCacheEntry{
		key:       key,
		summary:   summary,
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)

	for len(c.entries) > c.maxEntries {
		c.removeElement(c.order.Back())
	}
}

func (c *summaryCache) len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *summaryCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry := elem.Value.(*summaryCacheEntry); now.After(entry.expiresAt) { //nolint:forcetypeassert // only entries are stored
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *summaryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*summaryCacheEntry) //nolint:forcetypeassert // only entries are stored

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
