package partition

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeprysm/codeprysm/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "myrepo_src.db")
	s, err := Create(path, "myrepo_src", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSingleFileReindex exercises spec scenario S1: one file with two
// callables and a Contains/Contains/Uses edge set.
func TestSingleFileReindex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nodes := []*graph.Node{
		{ID: "src/a.py", NodeType: graph.Container, Kind: "file", File: "src/a.py"},
		{ID: "src/a.py:foo", NodeType: graph.Callable, Kind: "function", File: "src/a.py", Line: 1, EndLine: 3},
		{ID: "src/a.py:bar", NodeType: graph.Callable, Kind: "function", File: "src/a.py", Line: 5, EndLine: 7},
	}
	edges := []*graph.Edge{
		{Source: "src/a.py", Target: "src/a.py:foo", EdgeType: graph.Contains},
		{Source: "src/a.py", Target: "src/a.py:bar", EdgeType: graph.Contains},
		{Source: "src/a.py:foo", Target: "src/a.py:bar", EdgeType: graph.Uses, RefLine: 5},
	}

	require.NoError(t, s.BulkInsert(ctx, nodes, edges))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.NodeCount)
	require.Equal(t, 3, stats.EdgeCount)
	require.Equal(t, "myrepo_src", stats.PartitionID)
}

func TestGetNodeNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNode(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLegacyFileNodeTypeBecomesContainer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertNode(ctx, &graph.Node{ID: "a.py", NodeType: "FILE", Kind: "", File: "a.py"}))

	n, err := s.GetNode(ctx, "a.py")
	require.NoError(t, err)
	require.Equal(t, graph.Container, n.NodeType)
	require.Equal(t, "file", n.Kind)
}

func TestUnknownEdgeTypeFallsBackToUses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertNode(ctx, &graph.Node{ID: "a", NodeType: graph.Container, File: "a.py"}))
	require.NoError(t, s.InsertNode(ctx, &graph.Node{ID: "b", NodeType: graph.Container, File: "b.py"}))

	_, err := s.db.ExecContext(ctx, `INSERT INTO edges(source, target, edge_type) VALUES (?, ?, ?)`, "a", "b", "Imports")
	require.NoError(t, err)

	edges, err := s.QueryAllEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, graph.Uses, edges[0].EdgeType)
}

func TestEdgeDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := &graph.Edge{Source: "a", Target: "b", EdgeType: graph.Uses, RefLine: 5}
	require.NoError(t, s.InsertEdge(ctx, e))
	require.NoError(t, s.InsertEdge(ctx, e))

	edges, err := s.QueryAllEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestDeleteByFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BulkInsert(ctx, []*graph.Node{
		{ID: "a.py:foo", NodeType: graph.Callable, File: "a.py"},
		{ID: "b.py:bar", NodeType: graph.Callable, File: "b.py"},
	}, []*graph.Edge{
		{Source: "a.py:foo", Target: "b.py:bar", EdgeType: graph.Uses},
	}))

	require.NoError(t, s.DeleteByFile(ctx, "a.py"))

	nodes, err := s.QueryAllNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "b.py:bar", nodes[0].ID)

	edges, err := s.QueryAllEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 0)
}

func TestOpenMigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := open(path)
	require.NoError(t, err)
	_, err = db.Exec(schemaDDLv1)
	require.NoError(t, err)
	require.NoError(t, setMetadata(db, "schema_version", SchemaVersionV1))
	require.NoError(t, setMetadata(db, "partition_id", "myrepo_src"))
	require.NoError(t, db.Close())

	s, err := Open(path, "myrepo_src", nil)
	require.NoError(t, err)
	defer s.Close()

	version, err := getMetadata(s.db, "schema_version")
	require.NoError(t, err)
	require.Equal(t, SchemaVersionCurrent, version)

	// New columns must be usable post-migration.
	ctx := context.Background()
	require.NoError(t, s.InsertEdge(ctx, &graph.Edge{
		Source: "a", Target: "b", EdgeType: graph.DependsOn, VersionSpec: "^1.0", IsDevDependency: true,
	}))
	edges, err := s.QueryAllEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "^1.0", edges[0].VersionSpec)
	require.True(t, edges[0].IsDevDependency)
}

func TestOpenRejectsUnknownSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.db")
	db, err := open(path)
	require.NoError(t, err)
	_, err = db.Exec(schemaDDL)
	require.NoError(t, err)
	require.NoError(t, setMetadata(db, "schema_version", "9.9"))
	require.NoError(t, db.Close())

	_, err = Open(path, "p", nil)
	require.Error(t, err)
	var mismatch *SchemaVersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "9.9", mismatch.Found)
}

func TestClearDataKeepSchema(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertNode(ctx, &graph.Node{ID: "a", NodeType: graph.Container, File: "a.py"}))
	require.NoError(t, s.ClearDataKeepSchema(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.NodeCount)
	require.Equal(t, "myrepo_src", stats.PartitionID)
}
