package graphsource

import (
	"context"
	"testing"

	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/merkle"
	"github.com/stretchr/testify/require"
)

func TestFileGraphProducerInsertsOneNodePerFile(t *testing.T) {
	tree := merkle.NewTree()
	tree.Hashes["a/b.go"] = "hash1"
	tree.Hashes["c.go"] = "hash2"

	g := graph.New()
	require.NoError(t, FileGraphProducer{}.BuildGraph(context.Background(), g, tree))

	g.Lock()
	defer g.Unlock()

	require.Equal(t, 2, g.NodeCountLocked())
	n := g.GetNodeLocked("a/b.go")
	require.NotNil(t, n)
	require.Equal(t, graph.Container, n.NodeType)
	require.Equal(t, "file", n.Kind)
	require.Equal(t, "hash1", n.Hash)
}

func TestFileGraphProducerEmptyTree(t *testing.T) {
	tree := merkle.NewTree()
	g := graph.New()

	require.NoError(t, FileGraphProducer{}.BuildGraph(context.Background(), g, tree))

	g.Lock()
	defer g.Unlock()
	require.Equal(t, 0, g.NodeCountLocked())
}
