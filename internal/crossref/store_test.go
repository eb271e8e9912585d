package crossref

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeprysm/codeprysm/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cross_refs.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAllThenLoadAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	refs := []CrossRef{
		{SourceID: "pkg/a.go:Foo", SourcePartition: "repo_pkg_a", TargetID: "pkg/b.go:Bar", TargetPartition: "repo_pkg_b", EdgeType: graph.Uses, RefLine: 10},
		{SourceID: "pkg/a.go:Foo", SourcePartition: "repo_pkg_a", TargetID: "pkg/c.go:Baz", TargetPartition: "repo_pkg_c", EdgeType: graph.DependsOn, VersionSpec: "^1.2", IsDevDependency: true},
	}
	require.NoError(t, s.SaveAll(ctx, refs))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byTarget := map[string]CrossRef{}
	for _, r := range loaded {
		byTarget[r.TargetID] = r
	}
	require.Equal(t, graph.Uses, byTarget["pkg/b.go:Bar"].EdgeType)
	require.Equal(t, 10, byTarget["pkg/b.go:Bar"].RefLine)
	require.True(t, byTarget["pkg/c.go:Baz"].IsDevDependency)
	require.Equal(t, "^1.2", byTarget["pkg/c.go:Baz"].VersionSpec)
}

func TestSaveAllReplacesPriorContents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAll(ctx, []CrossRef{
		{SourceID: "a", SourcePartition: "p1", TargetID: "b", TargetPartition: "p2", EdgeType: graph.Uses},
	}))
	require.NoError(t, s.SaveAll(ctx, []CrossRef{
		{SourceID: "c", SourcePartition: "p3", TargetID: "d", TargetPartition: "p4", EdgeType: graph.Contains},
	}))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "c", loaded[0].SourceID)
}

func TestAddRefsIsInsertIgnore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ref := CrossRef{SourceID: "a", SourcePartition: "p1", TargetID: "b", TargetPartition: "p2", EdgeType: graph.Uses, RefLine: 3}
	require.NoError(t, s.AddRefs(ctx, []CrossRef{ref}))
	require.NoError(t, s.AddRefs(ctx, []CrossRef{ref}))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestLoadAllNormalizesUnknownEdgeType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cross_refs(source_id, source_partition, target_id, target_partition, edge_type)
		VALUES ('a', 'p1', 'b', 'p2', 'Imports')
	`)
	require.NoError(t, err)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, graph.Uses, loaded[0].EdgeType)
}
