// Package cache implements the byte-budget LRU cache that tracks which
// partitions are currently materialized in memory (spec §4.3).
package cache

import (
	"container/list"
	"math"
	"sync"
)

const (
	// DefaultBudgetBytes is the default memory budget (512 MiB).
	DefaultBudgetBytes = 512 * 1024 * 1024
	// DefaultMinPartitions is the residency floor that avoids thrash.
	DefaultMinPartitions = 2

	nodeBaseBytes   = 512
	edgeBaseBytes   = 128
	overheadFactor  = 1.4
)

// PartitionStats describes a loaded partition's size for memory
// accounting.
type PartitionStats struct {
	NodeCount      int
	EdgeCount      int
	EstimatedBytes int
}

// NewPartitionStats computes EstimatedBytes from node/edge counts:
// round((nodes*512 + edges*128) * 1.4) (spec §4.3).
func NewPartitionStats(nodeCount, edgeCount int) PartitionStats {
	return PartitionStats{
		NodeCount:      nodeCount,
		EdgeCount:      edgeCount,
		EstimatedBytes: EstimateMemory(nodeCount, edgeCount),
	}
}

// EstimateMemory applies the default size model.
func EstimateMemory(nodeCount, edgeCount int) int {
	return EstimateMemoryCustom(nodeCount, edgeCount, nodeBaseBytes, edgeBaseBytes, overheadFactor)
}

// EstimateMemoryCustom is a parameterized memory estimator for callers
// modeling non-default workloads (carried from the Rust original's
// `estimate_memory_custom`, see SPEC_FULL.md §4).
func EstimateMemoryCustom(nodeCount, edgeCount, nodeSize, edgeSize int, overhead float64) int {
	base := nodeCount*nodeSize + edgeCount*edgeSize
	return int(math.Round(float64(base) * overhead))
}

// Metrics is a point-in-time snapshot of cache counters.
type Metrics struct {
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	BytesEvicted int
}

// HitRate returns Hits / (Hits + Misses), or 0 if no accesses recorded.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

type entry struct {
	partitionID string
	stats       PartitionStats
}

// Cache is a thread-safe byte-budget LRU cache of partition stats. Each
// public method locks for its own call only; no lock is ever held
// across an I/O boundary (spec §4.3, §5).
type Cache struct {
	mu            sync.Mutex
	maxBytes      int
	minPartitions int

	currentBytes int
	ll           *list.List               // front = most recently used
	index        map[string]*list.Element // partitionID -> element holding *entry
	metrics      Metrics
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithMinPartitions overrides the default residency floor.
func WithMinPartitions(n int) Option {
	return func(c *Cache) { c.minPartitions = n }
}

// New creates a cache with the given byte budget.
func New(maxBytes int, opts ...Option) *Cache {
	c := &Cache{
		maxBytes:      maxBytes,
		minPartitions: DefaultMinPartitions,
		ll:            list.New(),
		index:         make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithDefaultBudget creates a cache with the default 512 MiB budget.
func WithDefaultBudget(opts ...Option) *Cache {
	return New(DefaultBudgetBytes, opts...)
}

// MaxBytes returns the configured budget.
func (c *Cache) MaxBytes() int {
	return c.maxBytes
}

// CurrentBytes returns the current estimated memory usage.
func (c *Cache) CurrentBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes
}

// MemoryUsageRatio returns CurrentBytes/MaxBytes, or 0 if MaxBytes is 0.
func (c *Cache) MemoryUsageRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxBytes == 0 {
		return 0
	}
	return float64(c.currentBytes) / float64(c.maxBytes)
}

// PartitionCount returns the number of partitions currently tracked.
func (c *Cache) PartitionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Metrics returns a snapshot of the current counters.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ResetMetrics zeroes the counters.
func (c *Cache) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
}

// Contains reports whether partitionID is currently tracked, without
// affecting LRU order or metrics.
func (c *Cache) Contains(partitionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[partitionID]
	return ok
}

// Touch marks partitionID as accessed, moving it to the front of the
// LRU order and recording a hit; records a miss and returns false if
// not tracked.
func (c *Cache) Touch(partitionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[partitionID]; ok {
		c.ll.MoveToFront(el)
		c.metrics.Hits++
		return true
	}
	c.metrics.Misses++
	return false
}

// RecordLoaded adds partitionID to the cache (at the front) and adds
// its estimated bytes to the running total.
func (c *Cache) RecordLoaded(partitionID string, stats PartitionStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[partitionID]; ok {
		old := el.Value.(*entry)
		c.currentBytes += stats.EstimatedBytes - old.stats.EstimatedBytes
		old.stats = stats
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{partitionID: partitionID, stats: stats})
	c.index[partitionID] = el
	c.currentBytes += stats.EstimatedBytes
}

// GetStats returns the tracked stats for partitionID, if any.
func (c *Cache) GetStats(partitionID string) (PartitionStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[partitionID]
	if !ok {
		return PartitionStats{}, false
	}
	return el.Value.(*entry).stats, true
}

// Remove evicts partitionID from the cache, recording an eviction, and
// returns its stats if it was tracked.
func (c *Cache) Remove(partitionID string) (PartitionStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[partitionID]
	if !ok {
		return PartitionStats{}, false
	}
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, partitionID)
	c.currentBytes -= e.stats.EstimatedBytes
	if c.currentBytes < 0 {
		c.currentBytes = 0
	}
	c.metrics.Evictions++
	c.metrics.BytesEvicted += e.stats.EstimatedBytes
	return e.stats, true
}

// IsOverBudget reports whether current usage exceeds the budget.
func (c *Cache) IsOverBudget() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes > c.maxBytes
}

// GetEvictionCandidates returns partition IDs to evict, LRU-first,
// stopping once projected usage is within budget or residency would
// fall to minPartitions (spec §4.3).
func (c *Cache) GetEvictionCandidates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentBytes <= c.maxBytes {
		return nil
	}

	var candidates []string
	projected := c.currentBytes
	remaining := c.ll.Len()

	for el := c.ll.Back(); el != nil; el = el.Prev() {
		if projected <= c.maxBytes {
			break
		}
		if remaining <= c.minPartitions {
			break
		}
		e := el.Value.(*entry)
		candidates = append(candidates, e.partitionID)
		projected -= e.stats.EstimatedBytes
		remaining--
	}
	return candidates
}

// GetEvictionCandidatesFor returns partition IDs to evict to free at
// least neededBytes, LRU-first.
func (c *Cache) GetEvictionCandidatesFor(neededBytes int) []string {
	if neededBytes <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []string
	freed := 0
	remaining := c.ll.Len()

	for el := c.ll.Back(); el != nil; el = el.Prev() {
		if freed >= neededBytes {
			break
		}
		if remaining <= c.minPartitions {
			break
		}
		e := el.Value.(*entry)
		candidates = append(candidates, e.partitionID)
		freed += e.stats.EstimatedBytes
		remaining--
	}
	return candidates
}

// MemoryNeededFor returns how many bytes must be freed to accommodate
// additionalBytes more, or 0 if there's already room.
func (c *Cache) MemoryNeededFor(additionalBytes int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	projected := c.currentBytes + additionalBytes
	if projected <= c.maxBytes {
		return 0
	}
	return projected - c.maxBytes
}

// Clear removes every tracked partition and resets current usage, but
// leaves metrics untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.index = make(map[string]*list.Element)
	c.currentBytes = 0
}
