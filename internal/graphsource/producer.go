// Package graphsource supplies the external graph-producer collaborator
// named by spec §1: language-specific source parsing is out of scope,
// so the core never inspects a file's contents beyond hashing it for
// change detection. Producer is the seam a real parser would implement;
// FileGraphProducer is a minimal stand-in that builds one Container
// node per tracked file (kind "file", per spec §3.1's legacy-File
// mapping) so the indexing pipeline has something to partition and
// embed end to end without a language parser present.
package graphsource

import (
	"context"

	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/merkle"
)

// Producer builds or refreshes an in-memory graph for a set of files.
// A real implementation would walk each file's AST and emit typed
// Container/Callable/Data nodes and Contains/Uses/Defines/DependsOn
// edges; that work is explicitly out of scope here.
type Producer interface {
	// BuildGraph populates g with nodes/edges for every file in tree.
	BuildGraph(ctx context.Context, g *graph.Graph, tree *merkle.Tree) error
}

// FileGraphProducer emits exactly one Container node per tracked file,
// with no Callable/Data children and no edges. It lets callers exercise
// the full partition/index/search pipeline before a real per-language
// parser is wired in.
type FileGraphProducer struct{}

// BuildGraph implements Producer.
func (FileGraphProducer) BuildGraph(_ context.Context, g *graph.Graph, tree *merkle.Tree) error {
	g.Lock()
	defer g.Unlock()

	for path, hash := range tree.Hashes {
		g.InsertNodeLocked(&graph.Node{
			ID:       path,
			NodeType: graph.Container,
			Kind:     "file",
			File:     path,
			Line:     1,
			EndLine:  1,
			Hash:     hash,
		})
	}
	return nil
}
