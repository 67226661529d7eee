// Package cache remembers extracted records by canonical post URL so a URL
// listed twice in one input is only navigated once.
package cache

import (
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/use-agent/postpulse/models"
)

// entry holds a cached record with its creation timestamp.
type entry struct {
	record    models.EngagementRecord
	createdAt time.Time
}

// Cache is a bounded LRU of records. It is safe for concurrent use.
type Cache struct {
	mu     sync.Mutex // guards hits/misses
	store  *lru.Cache[string, entry]
	maxAge time.Duration
	now    func() time.Time

	hits, misses int
}

// New creates a Cache holding at most maxEntries records for up to maxAge.
// maxEntries <= 0 returns nil; a nil *Cache misses on every lookup.
func New(maxEntries int, maxAge time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, nil
	}
	store, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, maxAge: maxAge, now: time.Now}, nil
}

// Key canonicalizes a post URL: scheme, host and path lowercased, "www."
// and "mobile." dropped, twitter.com folded into x.com, query, fragment and
// trailing slash removed. Unparseable input is returned trimmed.
func Key(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "mobile.")
	if host == "twitter.com" {
		host = "x.com"
	}
	// Handles are case-insensitive and the rest of a post path is digits or
	// fixed words, so the whole path folds to lower case.
	return "https://" + host + strings.ToLower(strings.TrimRight(u.EscapedPath(), "/"))
}

// Get retrieves a record cached for url if it is younger than maxAge.
// The stored record's URL is replaced with url so the row reflects the
// input as given.
func (c *Cache) Get(url string) (models.EngagementRecord, bool) {
	if c == nil {
		return models.EngagementRecord{}, false
	}
	e, ok := c.store.Get(Key(url))
	if ok && c.maxAge > 0 && c.now().Sub(e.createdAt) > c.maxAge {
		c.store.Remove(Key(url))
		ok = false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.misses++
		return models.EngagementRecord{}, false
	}
	c.hits++
	r := e.record
	r.URL = url
	return r, true
}

// Set stores a record. Failed records are never cached so a later
// duplicate gets a fresh navigation.
func (c *Cache) Set(r models.EngagementRecord) {
	if c == nil || r.Status == models.StatusFailed {
		return
	}
	c.store.Add(Key(r.URL), entry{record: r, createdAt: c.now()})
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.store.Len()
}

// Stats returns lookup hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
