package crossref

import "sync"

// Index is the in-memory bidirectional index of cross-partition edges
// (spec §4.2). It is always fully loaded while a lazy graph manager
// exists (spec §3.5).
type Index struct {
	mu       sync.RWMutex
	byTarget map[string][]CrossRef
	bySource map[string][]CrossRef
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		byTarget: make(map[string][]CrossRef),
		bySource: make(map[string][]CrossRef),
	}
}

// Add inserts a single cross-ref into both maps.
func (idx *Index) Add(r CrossRef) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byTarget[r.TargetID] = append(idx.byTarget[r.TargetID], r)
	idx.bySource[r.SourceID] = append(idx.bySource[r.SourceID], r)
}

// AddAll inserts every cross-ref in refs.
func (idx *Index) AddAll(refs []CrossRef) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range refs {
		idx.byTarget[r.TargetID] = append(idx.byTarget[r.TargetID], r)
		idx.bySource[r.SourceID] = append(idx.bySource[r.SourceID], r)
	}
}

// GetByTarget returns a clone of the cross-refs whose target is id, so
// callers may keep iterating without holding the lock into further I/O
// (spec §4.6.3, §5).
func (idx *Index) GetByTarget(id string) []CrossRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return cloneSlice(idx.byTarget[id])
}

// GetBySource returns a clone of the cross-refs whose source is id.
func (idx *Index) GetBySource(id string) []CrossRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return cloneSlice(idx.bySource[id])
}

func cloneSlice(in []CrossRef) []CrossRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]CrossRef, len(in))
	copy(out, in)
	return out
}

// RemoveBySourcePartition removes every cross-ref whose source
// partition equals partitionID.
func (idx *Index) RemoveBySourcePartition(partitionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.filterLocked(func(r CrossRef) bool { return r.SourcePartition != partitionID })
}

// RemoveByPartition removes every cross-ref where either endpoint's
// partition equals partitionID (spec §4.2).
func (idx *Index) RemoveByPartition(partitionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.filterLocked(func(r CrossRef) bool {
		return r.SourcePartition != partitionID && r.TargetPartition != partitionID
	})
}

// filterLocked rebuilds both maps keeping only refs for which keep
// returns true. Caller must hold the write lock.
func (idx *Index) filterLocked(keep func(CrossRef) bool) {
	newByTarget := make(map[string][]CrossRef)
	newBySource := make(map[string][]CrossRef)
	seen := make(map[[4]string]bool)

	for _, refs := range idx.byTarget {
		for _, r := range refs {
			key := r.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			if keep(r) {
				newByTarget[r.TargetID] = append(newByTarget[r.TargetID], r)
				newBySource[r.SourceID] = append(newBySource[r.SourceID], r)
			}
		}
	}
	idx.byTarget = newByTarget
	idx.bySource = newBySource
}

// Len returns the total number of cross-refs tracked. A ref added more
// than once through Add or AddAll is counted once per add.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, refs := range idx.byTarget {
		n += len(refs)
	}
	return n
}

// Iter returns every cross-ref currently tracked, one entry per add;
// duplicates are not collapsed.
func (idx *Index) Iter() []CrossRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []CrossRef
	for _, refs := range idx.byTarget {
		out = append(out, refs...)
	}
	return out
}

// Clear empties both maps.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byTarget = make(map[string][]CrossRef)
	idx.bySource = make(map[string][]CrossRef)
}

// ByTargetSet and BySourceSet return the full map contents, used by
// the round-trip property test (spec §8.8) to compare index equality
// without caring about slice order.
func (idx *Index) ByTargetSet() map[string]map[[4]string]CrossRef {
	return idx.setView(func() map[string][]CrossRef { return idx.byTarget })
}

func (idx *Index) BySourceSet() map[string]map[[4]string]CrossRef {
	return idx.setView(func() map[string][]CrossRef { return idx.bySource })
}

func (idx *Index) setView(get func() map[string][]CrossRef) map[string]map[[4]string]CrossRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]map[[4]string]CrossRef)
	for key, refs := range get() {
		set := make(map[[4]string]CrossRef, len(refs))
		for _, r := range refs {
			set[r.DedupKey()] = r
		}
		out[key] = set
	}
	return out
}

// LoadInto replaces idx's content with refs (typically the rows returned
// by Store.LoadAll), clearing any prior content first (spec §4.6.4
// reload_cross_refs).
func LoadInto(idx *Index, refs []CrossRef) {
	idx.Clear()
	idx.AddAll(refs)
}
