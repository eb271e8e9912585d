package cache

import "testing"

func TestEstimateMemory(t *testing.T) {
	// 1000 nodes, 500 edges: (1000*512 + 500*128) * 1.4 = 806400.
	got := EstimateMemory(1000, 500)
	if got != 806400 {
		t.Fatalf("EstimateMemory(1000, 500) = %d, want 806400", got)
	}
}

func TestNewAndDefaults(t *testing.T) {
	c := New(1024 * 1024)
	if c.MaxBytes() != 1024*1024 {
		t.Fatalf("MaxBytes = %d", c.MaxBytes())
	}
	if c.CurrentBytes() != 0 || c.PartitionCount() != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestRecordLoadedAndContains(t *testing.T) {
	c := New(10_000_000)
	stats := NewPartitionStats(100, 50)
	c.RecordLoaded("p1", stats)

	if c.PartitionCount() != 1 {
		t.Fatalf("PartitionCount = %d, want 1", c.PartitionCount())
	}
	if c.CurrentBytes() != stats.EstimatedBytes {
		t.Fatalf("CurrentBytes = %d, want %d", c.CurrentBytes(), stats.EstimatedBytes)
	}
	if !c.Contains("p1") {
		t.Fatal("expected p1 to be contained")
	}
}

func TestTouchRecordsHitsAndMisses(t *testing.T) {
	c := New(10_000_000)
	c.RecordLoaded("p1", NewPartitionStats(100, 50))
	c.RecordLoaded("p2", NewPartitionStats(100, 50))

	if !c.Touch("p1") {
		t.Fatal("expected hit for p1")
	}
	if c.Touch("p3") {
		t.Fatal("expected miss for p3")
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestRemoveRecordsEviction(t *testing.T) {
	c := New(10_000_000)
	stats := NewPartitionStats(100, 50)
	c.RecordLoaded("p1", stats)

	removed, ok := c.Remove("p1")
	if !ok {
		t.Fatal("expected p1 to be removed")
	}
	if removed.EstimatedBytes != stats.EstimatedBytes {
		t.Fatalf("removed stats mismatch")
	}
	if c.CurrentBytes() != 0 {
		t.Fatalf("CurrentBytes after remove = %d", c.CurrentBytes())
	}
	if c.Contains("p1") {
		t.Fatal("p1 should no longer be contained")
	}

	m := c.Metrics()
	if m.Evictions != 1 || m.BytesEvicted != stats.EstimatedBytes {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestEvictionRespectsMinPartitions(t *testing.T) {
	// Budget 15000, min_partitions=2; four partitions of 8960 bytes each.
	c := New(15000, WithMinPartitions(2))
	each := NewPartitionStats(10, 10) // (10*512+10*128)*1.4 = 8960
	for i, id := range []string{"p1", "p2", "p3", "p4"} {
		_ = i
		c.RecordLoaded(id, each)
	}

	if !c.IsOverBudget() {
		t.Fatalf("expected cache to be over budget, current=%d max=%d", c.CurrentBytes(), c.MaxBytes())
	}

	candidates := c.GetEvictionCandidates()
	if len(candidates) == 0 {
		t.Fatal("expected at least one eviction candidate")
	}
	// Oldest first: p1, p2 were loaded first so should appear first in LRU order.
	if candidates[0] != "p1" {
		t.Fatalf("expected LRU-first eviction order, got %v", candidates)
	}

	for _, victim := range candidates {
		c.Remove(victim)
	}
	if c.PartitionCount() < 2 {
		t.Fatalf("residency should never fall below min_partitions=2, got %d", c.PartitionCount())
	}
}

func TestMemoryNeededFor(t *testing.T) {
	c := New(1000)
	c.RecordLoaded("p1", PartitionStats{EstimatedBytes: 900})
	if got := c.MemoryNeededFor(50); got != 0 {
		t.Fatalf("MemoryNeededFor(50) = %d, want 0", got)
	}
	if got := c.MemoryNeededFor(200); got != 100 {
		t.Fatalf("MemoryNeededFor(200) = %d, want 100", got)
	}
}

func TestClearKeepsMetrics(t *testing.T) {
	c := New(10_000_000)
	c.RecordLoaded("p1", NewPartitionStats(10, 10))
	c.Touch("p1")
	c.Clear()

	if c.PartitionCount() != 0 || c.CurrentBytes() != 0 {
		t.Fatal("expected cache to be empty after Clear")
	}
	if c.Metrics().Hits != 1 {
		t.Fatal("Clear should not reset metrics")
	}
}

func TestHitRate(t *testing.T) {
	m := Metrics{Hits: 3, Misses: 1}
	if got := m.HitRate(); got != 0.75 {
		t.Fatalf("HitRate = %v, want 0.75", got)
	}
	if (Metrics{}).HitRate() != 0 {
		t.Fatal("empty metrics hit rate should be 0")
	}
}
