// Package metacache is the bounded, thread-safe store of aircraft model
// metadata. Positive entries live in an LRU; paths known to be missing or
// unusable are kept in a separate negative set.
package metacache

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries   int    `json:"entries"`
	Negatives int    `json:"negatives"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Installs  uint64 `json:"installs"`
	Evictions uint64 `json:"evictions"`
}

// EvictFunc is called for every entry dropped to make room. It runs while the
// cache's write lock is held and must not call back into the cache.
type EvictFunc func(key Key)

// Option configures a Cache.
type Option func(*Cache)

// WithEvictFunc registers a callback for capacity evictions. See EvictFunc for
// the locking contract.
func WithEvictFunc(fn EvictFunc) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// Cache holds parsed metadata records keyed by model file path.
//
// Lookups never touch the file system. The background loader writes through
// InstallIfCurrent and MarkNegativeIfCurrent.
type Cache struct {
	capacity int
	entries  *lru.Cache[Key, Record]
	onEvict  EvictFunc

	// writeMu serialises writers so that removals can be told apart from
	// capacity evictions in the LRU callback.
	writeMu  sync.Mutex
	removing bool
	// gens counts invalidations per key. Guarded by writeMu.
	gens     map[Key]uint64

	negMu     sync.RWMutex
	negatives map[Key]struct{}

	hits      atomic.Uint64
	misses    atomic.Uint64
	installs  atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most capacity records.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("metacache: capacity must be positive, got %d", capacity)
	}
	c := &Cache{
		capacity:  capacity,
		negatives: make(map[Key]struct{}),
		gens:      make(map[Key]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := lru.NewWithEvict[Key, Record](capacity, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("metacache: %w", err)
	}
	c.entries = entries
	return c, nil
}

func (c *Cache) evicted(key Key, _ Record) {
	if c.removing {
		return
	}
	c.evictions.Add(1)
	if c.onEvict != nil {
		c.onEvict(key)
	}
}

// Lookup returns a copy of the record for key and marks it most recently used.
func (c *Cache) Lookup(key Key) (Record, bool) {
	rec, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return Record{}, false
	}
	c.hits.Add(1)
	return NewRecord(rec.values), true
}

// Peek returns a copy of the record for key without touching recency or the
// hit and miss counters.
func (c *Cache) Peek(key Key) (Record, bool) {
	rec, ok := c.entries.Peek(key)
	if !ok {
		return Record{}, false
	}
	return NewRecord(rec.values), true
}

// Contains reports whether key has a positive entry without touching recency.
func (c *Cache) Contains(key Key) bool {
	return c.entries.Contains(key)
}

// Install stores rec under key, evicting the least recently used entry when
// the cache is full. A negative mark for key is cleared.
func (c *Cache) Install(key Key, rec Record) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.install(key, rec)
}

func (c *Cache) install(key Key, rec Record) {
	c.negMu.Lock()
	delete(c.negatives, key)
	c.negMu.Unlock()

	c.entries.Add(key, NewRecord(rec.values))
	c.installs.Add(1)
}

// Generation returns the invalidation generation of key. A load that started
// at generation g may only land through InstallIfCurrent or
// MarkNegativeIfCurrent while the generation is still g.
func (c *Cache) Generation(key Key) uint64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.gens[key]
}

// InstallIfCurrent installs rec only if key has not been invalidated since
// gen was read. It reports whether the record was stored.
func (c *Cache) InstallIfCurrent(key Key, gen uint64, rec Record) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.install(key, rec)
	return true
}

// MarkNegativeIfCurrent is MarkNegative guarded by the same generation check
// as InstallIfCurrent.
func (c *Cache) MarkNegativeIfCurrent(key Key, gen uint64) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.markNegative(key)
	return true
}

// MarkNegative records that key has no usable backing file. Any positive
// entry for key is dropped.
func (c *Cache) MarkNegative(key Key) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.markNegative(key)
}

func (c *Cache) markNegative(key Key) {
	c.remove(key)
	c.negMu.Lock()
	c.negatives[key] = struct{}{}
	c.negMu.Unlock()
}

// IsNegative reports whether key is known to have no usable backing file.
func (c *Cache) IsNegative(key Key) bool {
	c.negMu.RLock()
	defer c.negMu.RUnlock()
	_, ok := c.negatives[key]
	return ok
}

// Invalidate drops both the positive and the negative entry for key, so the
// next lookup misses and triggers a reload. Loads already in flight for key
// are discarded when they finish.
func (c *Cache) Invalidate(key Key) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.gens[key]++
	c.remove(key)
	c.negMu.Lock()
	delete(c.negatives, key)
	c.negMu.Unlock()
}

func (c *Cache) remove(key Key) {
	c.removing = true
	c.entries.Remove(key)
	c.removing = false
}

// InvalidateNegative clears the whole negative set and returns how many
// entries it held.
func (c *Cache) InvalidateNegative() int {
	c.negMu.Lock()
	defer c.negMu.Unlock()
	n := len(c.negatives)
	c.negatives = make(map[Key]struct{})
	return n
}

// Len returns the number of positive entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.negMu.RLock()
	neg := len(c.negatives)
	c.negMu.RUnlock()

	return Stats{
		Entries:   c.entries.Len(),
		Negatives: neg,
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Installs:  c.installs.Load(),
		Evictions: c.evictions.Load(),
	}
}
