// Package resultcache implements C9: a single per-repository cache of
// expensive read results, bounded by total weight with LRU eviction and
// per-key miss coalescing
package resultcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Metrics counts cache events. Safe for concurrent use; read with
// Snapshot.
type Metrics struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	LoadSuccesses atomic.Int64
	LoadFailures  atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics suitable for logging.
type Snapshot struct {
	Hits, Misses, LoadSuccesses, LoadFailures int64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:          m.Hits.Load(),
		Misses:        m.Misses.Load(),
		LoadSuccesses: m.LoadSuccesses.Load(),
		LoadFailures:  m.LoadFailures.Load(),
	}
}

type centry[V any] struct {
	value  V
	weight int64
}

// Producer computes the value and weight for a cache miss.
type Producer[V any] func(ctx context.Context) (V, int64, error)

// Cache is a weighted, bounded, metric-instrumented cache keyed by K — a
// structural "cacheable call" key combining a repository identity with
// normalized call arguments. The backing LRU tracks
// recency only; weight-bounded eviction is enforced by this type since
// golang-lru/v2 has no notion of per-entry weight (the same
// manual-eviction-on-top-of-an-unbounded-LRU pattern used by
// watch.Map's capacity enforcement).
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	maxWeight int64
	curWeight int64
	items     *lru.Cache[K, *centry[V]]
	group     singleflight.Group

	Metrics Metrics
}

// New creates a cache bounded by maxWeight total entry weight.
func New[K comparable, V any](maxWeight int64) *Cache[K, V] {
	items, _ := lru.New[K, *centry[V]](1 << 30)
	return &Cache[K, V]{maxWeight: maxWeight, items: items}
}

func (c *Cache[K, V]) getLocked(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.items.Get(key)
	c.mu.Unlock()
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetIfPresent is the pure lookup — it never invokes a producer.
func (c *Cache[K, V]) GetIfPresent(key K) (V, bool) {
	v, ok := c.getLocked(key)
	if ok {
		c.Metrics.Hits.Add(1)
	} else {
		c.Metrics.Misses.Add(1)
	}
	return v, ok
}

// Put inserts or replaces key's value and weight, evicting the
// least-recently-used entries until total weight is back within bound.
func (c *Cache[K, V]) Put(key K, value V, weight int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.items.Peek(key); ok {
		c.curWeight -= old.weight
	}
	c.items.Add(key, &centry[V]{value: value, weight: weight})
	c.curWeight += weight
	c.evictLocked()
}

func (c *Cache[K, V]) evictLocked() {
	for c.curWeight > c.maxWeight {
		keys := c.items.Keys()
		if len(keys) == 0 {
			return
		}
		oldest := keys[0]
		if e, ok := c.items.Peek(oldest); ok {
			c.curWeight -= e.weight
		}
		c.items.Remove(oldest)
	}
}

// Load returns the cached value for key, computing and storing it via
// produce on a miss. Concurrent Load calls for the same key coalesce
// onto a single producer invocation through a per-key singleflight
// group; all callers observe the same result.
func (c *Cache[K, V]) Load(ctx context.Context, key K, produce Producer[V]) (V, error) {
	if v, ok := c.getLocked(key); ok {
		c.Metrics.Hits.Add(1)
		return v, nil
	}
	c.Metrics.Misses.Add(1)

	sfKey := fmt.Sprintf("%v", key)
	result, err, _ := c.group.Do(sfKey, func() (any, error) {
		if v, ok := c.getLocked(key); ok {
			return v, nil
		}
		v, weight, err := produce(ctx)
		if err != nil {
			c.Metrics.LoadFailures.Add(1)
			return nil, err
		}
		c.Put(key, v, weight)
		c.Metrics.LoadSuccesses.Add(1)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Get is Load under the "compute if absent" name.
func (c *Cache[K, V]) Get(ctx context.Context, key K, produce Producer[V]) (V, error) {
	return c.Load(ctx, key, produce)
}

// Invalidate drops the entry for key. The repository façade does not
// call it: its keys carry absolute revisions, whose contents never
// change, so they never need explicit invalidation.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.items.Peek(key); ok {
		c.curWeight -= old.weight
	}
	c.items.Remove(key)
}

// Len reports the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}
