package registry

import (
	"sync"
	"testing"
)

func TestRegisterAndUnregister(t *testing.T) {
	r := New()
	if r.IsLoaded("p1") {
		t.Fatal("p1 should not be loaded initially")
	}

	r.RegisterLoaded("p1", []string{"a.py:foo", "a.py:bar"})
	if !r.IsLoaded("p1") {
		t.Fatal("p1 should be loaded")
	}

	part, ok := r.GetNodePartition("a.py:foo")
	if !ok || part != "p1" {
		t.Fatalf("GetNodePartition = %q, %v", part, ok)
	}

	ids := r.Unregister("p1")
	if len(ids) != 2 {
		t.Fatalf("Unregister returned %d ids, want 2", len(ids))
	}
	if r.IsLoaded("p1") {
		t.Fatal("p1 should no longer be loaded")
	}
	if _, ok := r.GetNodePartition("a.py:foo"); ok {
		t.Fatal("node-to-partition mapping should be cleared")
	}
}

func TestGetLoadingLockSameInstancePerPartition(t *testing.T) {
	r := New()
	l1 := r.GetLoadingLock("p1")
	l2 := r.GetLoadingLock("p1")
	if l1 != l2 {
		t.Fatal("expected the same lock instance for the same partition")
	}
	l3 := r.GetLoadingLock("p2")
	if l1 == l3 {
		t.Fatal("expected different lock instances for different partitions")
	}
}

// TestConcurrentLoadSingleWinner exercises spec §8 property 5: N
// concurrent attempts to acquire the same partition's loading lock
// should allow exactly one to proceed at a time, never overlapping.
func TestConcurrentLoadSingleWinner(t *testing.T) {
	r := New()
	lock := r.GetLoadingLock("p1")

	var wg sync.WaitGroup
	var active int32
	var maxActive int32
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("max concurrent holders of the loading lock = %d, want 1", maxActive)
	}
}
