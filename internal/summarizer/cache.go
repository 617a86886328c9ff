package summarizer

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
)

type summaryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type summaryCacheEntry struct {
	key       string
	result    Result
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

func (c *summaryCache) get(key string, now time.Time) (Result, bool) {
	if c == nil || key == "" {
		return Result{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}

	entry, ok := elem.Value.(*summaryCacheEntry)
	if !ok {
		return Result{}, false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return Result{}, false
	}

	c.order.MoveToFront(elem)

	return copyResult(entry.result), true
}

func (c *summaryCache) set(
	key string,
	result Result,
	expiresAt time.Time,
	now time.Time,
) {
	if c == nil || key == "" || result.Summary == "" || expiresAt.IsZero() {
		return
	}

	if !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*summaryCacheEntry)
		if !castOk {
			return
		}

		entry.result = copyResult(result)
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&summaryCacheEntry{
		key:       key,
		result:    copyResult(result),
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *summaryCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		entry, ok := elem.Value.(*summaryCacheEntry)
		if ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *summaryCache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *summaryCache) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*summaryCacheEntry)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

// summaryCacheKey ties a cached summary to both the article location and
// its exact text, so an edited article is summarized again.
func summaryCacheKey(rawURL string, text string) string {
	normalizedText := strings.TrimSpace(text)
	if normalizedText == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(normalizedText))

	return canonicalURL(rawURL) + "|" + hex.EncodeToString(hash[:])
}

func canonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.Fragment = ""

	return u.String()
}

func copyResult(r Result) Result {
	tags := slices.Clone(r.Tags)
	if tags == nil {
		tags = []string{}
	}

	return Result{Summary: r.Summary, Tags: tags}
}
