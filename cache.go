package shapemc

import (
	"container/list"
	"encoding/binary"
	"math"
)

// DefaultCacheCapacity is used when NewCachedEvaluator gets a non-positive
// capacity.
const DefaultCacheCapacity = 1024

// CacheStats is a snapshot of cache behavior.
type CacheStats struct {
	Hits      uint64 // Lookups answered from the cache
	Misses    uint64 // Lookups that had to evaluate
	Evictions uint64 // Entries dropped to make room
}

// HitRate returns Hits / (Hits + Misses), or 0 before any lookup.
//
// Interpretation depends on what is wired around the chain. With a
// BestSampleLogger attached every accepted candidate is scored twice, once
// by the step and once by the observer, so a chain accepting a fraction α
// of its steps shows a hit rate near α/(1+α).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CachedEvaluator wraps an Evaluator with an LRU memo keyed on the exact
// parameter values. It implements Evaluator itself, so it drops into any
// spot a plain evaluator goes:
//
//	cached, err := shapemc.NewCachedEvaluator(expensive, 4096)
//
// Keys are the raw float64 bits of center, pose and coefficients, so two
// samples hit the same entry iff their parameters are bit-identical. No
// rounding, no collisions. Metropolis workflows re-score bit-identical
// samples constantly: observers re-score accepted candidates, summaries and
// diagnostics re-score collected samples, a restarted run re-scores its
// seed. The step loop itself is already frugal, holding the current sample's
// log-value in the iterator cursor.
//
// Provenance is deliberately NOT part of the key. The label records history,
// not state; a density that depended on it would not be a density over
// parameters.
//
// Errors from the wrapped evaluator are returned but never cached: a
// transient collaborator failure must not poison future lookups.
//
// A CachedEvaluator is not safe for concurrent use. A chain evaluates from a
// single goroutine; give each chain its own cache.
type CachedEvaluator struct {
	wrapped  Evaluator
	capacity int

	entries map[string]*list.Element
	order   *list.List // Front = most recent
	stats   CacheStats
}

type cacheEntry struct {
	key      string
	logValue float64
}

// NewCachedEvaluator wraps e with an LRU memo holding up to capacity
// entries. A non-positive capacity falls back to DefaultCacheCapacity.
func NewCachedEvaluator(e Evaluator, capacity int) (*CachedEvaluator, error) {
	if e == nil {
		return nil, ErrNilEvaluator
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity // Default
	}
	return &CachedEvaluator{
		wrapped:  e,
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}, nil
}

// LogValue answers from the memo when possible and delegates otherwise.
// A hit refreshes the entry's recency; a miss stores the fresh value,
// evicting the least recently used entry if the cache is full.
func (c *CachedEvaluator) LogValue(s Sample) (float64, error) {
	key := memoKey(s)
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		c.stats.Hits++
		return elem.Value.(*cacheEntry).logValue, nil
	}

	c.stats.Misses++
	v, err := c.wrapped.LogValue(s)
	if err != nil {
		return 0, err
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, logValue: v})
	return v, nil
}

// Stats returns a snapshot of hit, miss and eviction counts.
func (c *CachedEvaluator) Stats() CacheStats {
	return c.stats
}

// Len returns the number of cached entries.
func (c *CachedEvaluator) Len() int {
	return c.order.Len()
}

func (c *CachedEvaluator) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	delete(c.entries, back.Value.(*cacheEntry).key)
	c.stats.Evictions++
}

// memoKey serializes the density-relevant parts of a sample into a string
// key: rotation center, translation, rotation, then coefficients, each as
// little-endian float64 bits. Bit-exact by construction.
func memoKey(s Sample) string {
	buf := make([]byte, 0, 8*(9+len(s.Parameters.Coefficients)))
	buf = appendVec3(buf, s.RotationCenter)
	buf = appendVec3(buf, s.Parameters.Translation)
	buf = appendVec3(buf, s.Parameters.Rotation)
	for _, c := range s.Parameters.Coefficients {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(c))
	}
	return string(buf)
}

func appendVec3(buf []byte, v Vec3) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v[0]))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v[1]))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v[2]))
	return buf
}
