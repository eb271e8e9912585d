package semantictext

import (
	"strings"
	"testing"

	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/stretchr/testify/require"
)

func buildGraph() *graph.Graph {
	g := graph.New()
	g.Lock()
	defer g.Unlock()

	g.InsertNodeLocked(&graph.Node{ID: "svc.go", NodeType: graph.Container, Kind: "file", File: "internal/svc/handler.go"})
	g.InsertNodeLocked(&graph.Node{ID: "svc.go:Handler", NodeType: graph.Container, Kind: "class", File: "internal/svc/handler.go",
		Metadata: graph.Metadata{Visibility: "public"}})
	g.InsertNodeLocked(&graph.Node{ID: "svc.go:BaseHandler", NodeType: graph.Container, Kind: "interface", File: "internal/svc/base.go"})
	g.InsertNodeLocked(&graph.Node{ID: "svc.go:Handler:Serve", NodeType: graph.Callable, Kind: "method", File: "internal/svc/handler.go",
		Metadata: graph.Metadata{Visibility: "public", IsAsync: true}})
	g.InsertNodeLocked(&graph.Node{ID: "svc.go:Handler:count", NodeType: graph.Data, Kind: "field", File: "internal/svc/handler.go"})

	g.InsertEdgeLocked(&graph.Edge{Source: "svc.go:Handler", Target: "svc.go:BaseHandler", EdgeType: graph.Uses})
	g.InsertEdgeLocked(&graph.Edge{Source: "svc.go:Handler", Target: "svc.go:Handler:Serve", EdgeType: graph.Contains})
	g.InsertEdgeLocked(&graph.Edge{Source: "svc.go:Handler", Target: "svc.go:Handler:count", EdgeType: graph.Contains})
	g.InsertEdgeLocked(&graph.Edge{Source: "svc.go:Handler:Serve", Target: "svc.go:Handler", EdgeType: graph.Uses})

	return g
}

func TestBuildContainerDescription(t *testing.T) {
	g := buildGraph()
	g.RLock()
	defer g.RUnlock()

	n := g.GetNodeLocked("svc.go:Handler")
	text := Build(g, n, "type Handler struct { count int }")

	require.Contains(t, text, "public class Handler")
	require.Contains(t, text, "implements BaseHandler")
	require.Contains(t, text, "methods Serve")
	require.Contains(t, text, "fields count")
	require.Contains(t, text, "in file internal/svc/handler.go")
	require.Contains(t, text, "code: type Handler struct { count int }")
}

func TestBuildCallableParameterList(t *testing.T) {
	g := buildGraph()
	g.RLock()
	defer g.RUnlock()

	n := g.GetNodeLocked("svc.go:Handler:Serve")
	text := Build(g, n, "async def Serve(self, ctx: Context, req: Request = None): return None")

	require.Contains(t, text, "async method Serve")
	require.Contains(t, text, "(ctx, req)")
	require.Contains(t, text, "in class Handler")
	require.Contains(t, text, "uses types Handler")
}

func TestPreviewTruncatesAtWhitespace(t *testing.T) {
	longSource := strings.Repeat("token ", 100)
	got := preview(longSource)
	require.LessOrEqual(t, len(got), previewLimit+3)
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestKeywordTagsMatchesPatternsAndScope(t *testing.T) {
	n := &graph.Node{ID: "x.go:validateInput", Metadata: graph.Metadata{Scope: "test"}}
	tags := keywordTags(n, "func validateInput() error { return errors.New(\"bad\") }")
	require.Contains(t, tags, "validation")
	require.Contains(t, tags, "error handling")
	require.Contains(t, tags, "test")
}

func TestShortPathKeepsLastThreeComponents(t *testing.T) {
	require.Equal(t, "b/c/d.go", shortPath("a/b/c/d.go"))
	require.Equal(t, "d.go", shortPath("d.go"))
}
