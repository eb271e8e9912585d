package crossref

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeprysm/codeprysm/internal/graph"
)

func sampleRefs() []CrossRef {
	return []CrossRef{
		{SourceID: "a", SourcePartition: "p1", TargetID: "x", TargetPartition: "p2", EdgeType: graph.Uses, RefLine: 1},
		{SourceID: "b", SourcePartition: "p1", TargetID: "x", TargetPartition: "p2", EdgeType: graph.Uses, RefLine: 2},
		{SourceID: "a", SourcePartition: "p1", TargetID: "y", TargetPartition: "p3", EdgeType: graph.DependsOn},
	}
}

func TestIndexAddAllAndLookups(t *testing.T) {
	idx := NewIndex()
	idx.AddAll(sampleRefs())

	require.Equal(t, 3, idx.Len())
	require.Len(t, idx.GetByTarget("x"), 2)
	require.Len(t, idx.GetBySource("a"), 2)
	require.Empty(t, idx.GetByTarget("missing"))
}

func TestIndexGetByTargetReturnsClone(t *testing.T) {
	idx := NewIndex()
	idx.Add(CrossRef{SourceID: "a", SourcePartition: "p1", TargetID: "x", TargetPartition: "p2", EdgeType: graph.Uses})

	got := idx.GetByTarget("x")
	got[0].SourceID = "mutated"

	require.Equal(t, "a", idx.GetByTarget("x")[0].SourceID)
}

func TestIndexRemoveBySourcePartition(t *testing.T) {
	idx := NewIndex()
	idx.AddAll(sampleRefs())

	idx.RemoveBySourcePartition("p1")

	require.Equal(t, 0, idx.Len())
}

func TestIndexRemoveByPartitionMatchesEitherEndpoint(t *testing.T) {
	idx := NewIndex()
	idx.AddAll(sampleRefs())

	idx.RemoveByPartition("p3")

	require.Equal(t, 2, idx.Len())
	require.Len(t, idx.GetBySource("a"), 1)
}

func TestIndexClear(t *testing.T) {
	idx := NewIndex()
	idx.AddAll(sampleRefs())
	idx.Clear()

	require.Equal(t, 0, idx.Len())
	require.Empty(t, idx.Iter())
}

// TestSaveAllLoadAllRoundTripPreservesIndex exercises the round-trip
// property: save_all then load_all of any index yields an index with
// the same len and the same by_target/by_source sets.
func TestSaveAllLoadAllRoundTripPreservesIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cross_refs.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	original := NewIndex()
	original.AddAll(sampleRefs())

	ctx := context.Background()
	require.NoError(t, store.SaveAll(ctx, original.Iter()))

	loadedRefs, err := store.LoadAll(ctx)
	require.NoError(t, err)

	roundTripped := NewIndex()
	roundTripped.AddAll(loadedRefs)

	require.Equal(t, original.Len(), roundTripped.Len())
	require.Equal(t, original.ByTargetSet(), roundTripped.ByTargetSet())
	require.Equal(t, original.BySourceSet(), roundTripped.BySourceSet())
}

func TestLoadIntoClearsPriorContent(t *testing.T) {
	idx := NewIndex()
	idx.Add(CrossRef{SourceID: "stale", SourcePartition: "p1", TargetID: "z", TargetPartition: "p2", EdgeType: graph.Uses})

	LoadInto(idx, sampleRefs())

	require.Equal(t, 3, idx.Len())
	require.Empty(t, idx.GetBySource("stale"))
}
