package indexer

import (
	"context"
	"testing"

	"github.com/codeprysm/codeprysm/internal/embedding"
	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/merkle"
	"github.com/codeprysm/codeprysm/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	ensured       bool
	deletedRepo   []string
	deletedByFile []string
	upserted      map[string][]vectorstore.Point
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserted: make(map[string][]vectorstore.Point)}
}

func (f *fakeStore) EnsureCollections(context.Context, uint64) error {
	f.ensured = true
	return nil
}

func (f *fakeStore) DeleteRepoPoints(_ context.Context, collection string) error {
	f.deletedRepo = append(f.deletedRepo, collection)
	return nil
}

func (f *fakeStore) DeletePointsByFile(_ context.Context, collection, filePath string) error {
	f.deletedByFile = append(f.deletedByFile, collection+":"+filePath)
	return nil
}

func (f *fakeStore) UpsertPointsBatched(_ context.Context, collection string, points []vectorstore.Point, _ int) error {
	f.upserted[collection] = append(f.upserted[collection], points...)
	return nil
}

type fakeProvider struct {
	dim          int
	providerType embedding.ProviderType
	failSemantic bool
}

func (p *fakeProvider) EncodeSemantic(_ context.Context, texts []string) ([][]float32, error) {
	if p.failSemantic {
		return nil, embedding.ErrUnavailable
	}
	return fill(texts, p.dim), nil
}

func (p *fakeProvider) EncodeCode(_ context.Context, texts []string) ([][]float32, error) {
	return fill(texts, p.dim), nil
}

func (p *fakeProvider) CheckStatus(context.Context) (embedding.Status, error) {
	return embedding.Status{Available: true}, nil
}

func (p *fakeProvider) Warmup(context.Context) error { return nil }
func (p *fakeProvider) EmbeddingDim() int            { return p.dim }
func (p *fakeProvider) ProviderType() embedding.ProviderType {
	if p.providerType == "" {
		return embedding.OpenAI
	}
	return p.providerType
}

func fill(texts []string, dim int) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out
}

func buildTestGraph() *graph.Graph {
	g := graph.New()
	g.Lock()
	defer g.Unlock()
	g.InsertNodeLocked(&graph.Node{ID: "a.go", NodeType: graph.Container, Kind: "file", File: "a.go"})
	g.InsertNodeLocked(&graph.Node{ID: "a.go:Foo", NodeType: graph.Callable, Kind: "function", File: "a.go", Line: 1, EndLine: 1})
	return g
}

func fixedReader(content string) SourceReader {
	return func(string, int, int) (string, error) { return content, nil }
}

func TestIndexGraphSkipsFileNodes(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{dim: 4}
	ix := New(Options{Store: store, Provider: provider, RepoID: "repo-1", ReadSource: fixedReader("func Foo() {}")})

	g := buildTestGraph()
	stats, err := ix.IndexGraph(context.Background(), g)
	require.NoError(t, err)
	require.True(t, store.ensured)
	require.ElementsMatch(t, []string{vectorstore.SemanticCollection, vectorstore.CodeCollection}, store.deletedRepo)
	require.Equal(t, 2, stats.TotalProcessed)
	require.Equal(t, 1, stats.TotalSkipped)
	require.Equal(t, 1, stats.TotalIndexed)
	require.Equal(t, 1, stats.SemanticIndexed)
	require.Equal(t, 1, stats.CodeIndexed)
	require.Len(t, store.upserted[vectorstore.SemanticCollection], 1)
	require.Len(t, store.upserted[vectorstore.CodeCollection], 1)
}

func TestIndexNodesSkipsEmptySource(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{dim: 4}
	ix := New(Options{Store: store, Provider: provider, RepoID: "repo-1", ReadSource: fixedReader("   \n  ")})

	g := buildTestGraph()
	g.RLock()
	nodes := g.IterNodes()
	g.RUnlock()

	stats, err := ix.IndexNodes(context.Background(), nodes, g)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalSkipped)
	require.Equal(t, 0, stats.TotalIndexed)
}

func TestIndexNodesCountsChunkAsFailedOnEncodeError(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{dim: 4, failSemantic: true}
	ix := New(Options{Store: store, Provider: provider, RepoID: "repo-1", ReadSource: fixedReader("func Foo() {}")})

	g := buildTestGraph()
	g.RLock()
	nodes := g.IterNodes()
	g.RUnlock()

	stats, err := ix.IndexNodes(context.Background(), nodes, g)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalFailed)
	require.Equal(t, 0, stats.TotalIndexed)
}

func TestIndexChangesDeletesByFileThenReindexes(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{dim: 4}
	ix := New(Options{Store: store, Provider: provider, RepoID: "repo-1", ReadSource: fixedReader("func Foo() {}")})

	g := buildTestGraph()
	changes := merkle.Changes{Modified: []string{"a.go"}}

	stats, err := ix.IndexChanges(context.Background(), g, changes)
	require.NoError(t, err)
	require.Contains(t, store.deletedByFile, vectorstore.SemanticCollection+":a.go")
	require.Contains(t, store.deletedByFile, vectorstore.CodeCollection+":a.go")
	require.Equal(t, 1, stats.TotalIndexed)
}

func TestEncodeChunkSequentialForLocalProvider(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{dim: 4, providerType: embedding.Local}
	ix := New(Options{Store: store, Provider: provider, RepoID: "repo-1", ReadSource: fixedReader("func Foo() {}")})

	g := buildTestGraph()
	g.RLock()
	nodes := g.IterNodes()
	g.RUnlock()

	stats, err := ix.IndexNodes(context.Background(), nodes, g)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalIndexed)
}
