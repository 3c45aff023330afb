// File: internal/nodecache/cache.go
package nodecache

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
)

// Entry pairs a serializable descriptor with its live backing node. The node
// handle never crosses the engine boundary; it exists so the action engine can
// re-check attachment and drive events.
type Entry struct {
	Desc *schemas.NodeDescriptor
	Node *html.Node

	lastAccess  time.Time
	accessCount int
}

// Cache owns the set of currently-known interactive node descriptors and the
// inverted indexes over them. Entry map and indexes are mutated together under
// one lock, so no reader ever observes an id in an index bucket without a
// matching entry, or an entry unreachable from every index.
type Cache struct {
	mu     sync.Mutex
	logger *zap.Logger
	cfg    config.CacheConfig

	entries *lru.Cache[string, *Entry]

	tokenIndex   map[string]map[string]struct{}
	roleIndex    map[schemas.Role]map[string]struct{}
	locatorIndex map[string]map[string]struct{}
}

// New creates a cache bounded by cfg.MaxEntries. Eviction always removes the
// least-recently-accessed entry and unindexes it in the same critical section.
func New(cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	c := &Cache{
		logger:       logger.With(zap.String("component", "node_cache")),
		cfg:          cfg,
		tokenIndex:   make(map[string]map[string]struct{}),
		roleIndex:    make(map[schemas.Role]map[string]struct{}),
		locatorIndex: make(map[string]map[string]struct{}),
	}

	// The eviction hook runs synchronously inside Add/Remove while c.mu is
	// already held, so it must not lock.
	entries, err := lru.NewWithEvict[string, *Entry](cfg.MaxEntries, func(id string, e *Entry) {
		c.unindexLocked(id, e)
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Upsert inserts a new descriptor or merges it into an existing entry. On
// merge, volatile fields (text, attributes, geometry, visibility, locators)
// are replaced, lifecycle counters advance, and index deltas are applied
// rather than rebuilding the entry's buckets.
func (c *Cache) Upsert(desc *schemas.NodeDescriptor, node *html.Node) {
	if desc == nil || desc.ID == "" {
		c.logger.Debug("Skipping malformed descriptor with empty id")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if existing, ok := c.entries.Get(desc.ID); ok {
		oldTokens := descriptorTokens(existing.Desc)
		oldLocators := locatorKeys(existing.Desc)
		oldRole := existing.Desc.Role

		first := existing.Desc.FirstSeen
		updates := existing.Desc.UpdateCount + 1
		existing.Desc = desc
		existing.Desc.FirstSeen = first
		existing.Desc.LastSeen = now
		existing.Desc.UpdateCount = updates
		existing.Node = node
		existing.lastAccess = now
		existing.accessCount++

		c.applyIndexDeltas(desc.ID, oldTokens, descriptorTokens(desc))
		c.applyLocatorDeltas(desc.ID, oldLocators, locatorKeys(desc))
		if oldRole != desc.Role {
			c.dropFromBucketRole(oldRole, desc.ID)
			c.addToBucketRole(desc.Role, desc.ID)
		}
		return
	}

	desc.FirstSeen = now
	desc.LastSeen = now
	desc.UpdateCount = 0
	entry := &Entry{Desc: desc, Node: node, lastAccess: now, accessCount: 1}

	// Index first, then insert: if Add evicts the LRU victim, the hook runs
	// with both maps already consistent for the new id.
	for tok := range descriptorTokens(desc) {
		c.addToBucketToken(tok, desc.ID)
	}
	for key := range locatorKeys(desc) {
		c.addToBucketLocator(key, desc.ID)
	}
	c.addToBucketRole(desc.Role, desc.ID)

	c.entries.Add(desc.ID, entry)
}

// Remove deletes an entry and pulls its id out of every index bucket.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The eviction hook does the unindexing.
	return c.entries.Remove(id)
}

// Resolve returns the entry for an id, counting as an access.
func (c *Cache) Resolve(id string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(id)
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	e.accessCount++
	return e, true
}

// Contains reports presence without disturbing recency.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(id)
}

// ResolveLocator returns the ids indexed under one locator kind/value pair.
func (c *Cache) ResolveLocator(kind schemas.LocatorKind, value string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	bucket := c.locatorIndex[locatorKey(kind, value)]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetVisibility flips only the visible flag of an already-cached entry, for
// viewport-intersection transitions that don't warrant a re-extraction.
func (c *Cache) SetVisibility(id string, visible bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(id)
	if !ok {
		return false
	}
	e.Desc.Visible = visible
	e.Desc.LastSeen = time.Now()
	return true
}

// Sweep removes entries whose lastSeen is older than maxAge and returns how
// many were dropped. The observer calls this on a fixed interval; it doubles
// as self-healing for any entry whose backing node quietly went away.
func (c *Cache) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var stale []string
	for _, id := range c.entries.Keys() {
		if e, ok := c.entries.Peek(id); ok && e.Desc.LastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		c.entries.Remove(id)
	}
	if len(stale) > 0 {
		c.logger.Debug("Swept stale cache entries", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// IDs returns all cached ids, least-recently-used first.
func (c *Cache) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

// RecentVisible returns up to n visible and interactable entries ordered by
// most-recent lastSeen. This backs the intent resolver's recency fallback.
func (c *Cache) RecentVisible(n int) []*schemas.NodeDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := make([]*Entry, 0, c.entries.Len())
	for _, id := range c.entries.Keys() {
		if e, ok := c.entries.Peek(id); ok && e.Desc.Visible && e.Desc.Interactable {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Desc.LastSeen.After(candidates[j].Desc.LastSeen)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]*schemas.NodeDescriptor, len(candidates))
	for i, e := range candidates {
		out[i] = e.Desc.Clone()
	}
	return out
}

// Stats reports sizes for the engine's getStats surface. The memory estimate
// is a rough per-entry accounting of text payloads, not an exact heap figure.
func (c *Cache) Stats() schemas.EngineStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	mem := 0
	for _, id := range c.entries.Keys() {
		if e, ok := c.entries.Peek(id); ok {
			mem += len(id) + len(e.Desc.Text) + len(e.Desc.Tag) + 96
			for k, v := range e.Desc.Attributes {
				mem += len(k) + len(v)
			}
			for _, loc := range e.Desc.Locators {
				mem += len(loc.Value) + 24
			}
		}
	}
	return schemas.EngineStats{
		CacheSize: c.entries.Len(),
		IndexSizes: map[string]int{
			"token":   len(c.tokenIndex),
			"role":    len(c.roleIndex),
			"locator": len(c.locatorIndex),
		},
		MemoryEstimate: mem,
	}
}

// -- index bookkeeping (all called with c.mu held) --

func (c *Cache) unindexLocked(id string, e *Entry) {
	for tok := range descriptorTokens(e.Desc) {
		c.dropFromBucketToken(tok, id)
	}
	for key := range locatorKeys(e.Desc) {
		c.dropFromBucketLocator(key, id)
	}
	c.dropFromBucketRole(e.Desc.Role, id)
}

func (c *Cache) applyIndexDeltas(id string, old, next map[string]struct{}) {
	for tok := range old {
		if _, still := next[tok]; !still {
			c.dropFromBucketToken(tok, id)
		}
	}
	for tok := range next {
		if _, had := old[tok]; !had {
			c.addToBucketToken(tok, id)
		}
	}
}

func (c *Cache) applyLocatorDeltas(id string, old, next map[string]struct{}) {
	for key := range old {
		if _, still := next[key]; !still {
			c.dropFromBucketLocator(key, id)
		}
	}
	for key := range next {
		if _, had := old[key]; !had {
			c.addToBucketLocator(key, id)
		}
	}
}

func (c *Cache) addToBucketToken(tok, id string) {
	b, ok := c.tokenIndex[tok]
	if !ok {
		b = make(map[string]struct{})
		c.tokenIndex[tok] = b
	}
	b[id] = struct{}{}
}

func (c *Cache) dropFromBucketToken(tok, id string) {
	if b, ok := c.tokenIndex[tok]; ok {
		delete(b, id)
		if len(b) == 0 {
			delete(c.tokenIndex, tok)
		}
	}
}

func (c *Cache) addToBucketRole(role schemas.Role, id string) {
	b, ok := c.roleIndex[role]
	if !ok {
		b = make(map[string]struct{})
		c.roleIndex[role] = b
	}
	b[id] = struct{}{}
}

func (c *Cache) dropFromBucketRole(role schemas.Role, id string) {
	if b, ok := c.roleIndex[role]; ok {
		delete(b, id)
		if len(b) == 0 {
			delete(c.roleIndex, role)
		}
	}
}

func (c *Cache) addToBucketLocator(key, id string) {
	b, ok := c.locatorIndex[key]
	if !ok {
		b = make(map[string]struct{})
		c.locatorIndex[key] = b
	}
	b[id] = struct{}{}
}

func (c *Cache) dropFromBucketLocator(key, id string) {
	if b, ok := c.locatorIndex[key]; ok {
		delete(b, id)
		if len(b) == 0 {
			delete(c.locatorIndex, key)
		}
	}
}
