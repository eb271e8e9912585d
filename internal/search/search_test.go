package search

import (
	"context"
	"testing"

	"github.com/codeprysm/codeprysm/internal/embedding"
	"github.com/codeprysm/codeprysm/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func TestClassifyQuestion(t *testing.T) {
	require.Equal(t, Question, Classify("what does this do?"))
	require.Equal(t, Question, Classify("How is this wired"))
}

func TestClassifyIdentifier(t *testing.T) {
	require.Equal(t, Identifier, Classify("getUserById"))
	require.Equal(t, Identifier, Classify("parse_config"))
	require.Equal(t, Identifier, Classify("Handler"))
	require.Equal(t, Identifier, Classify("snake-case-name"))
}

func TestClassifyNatural(t *testing.T) {
	require.Equal(t, Natural, Classify("lowercase no dashes"))
	require.Equal(t, Natural, Classify("parse config without question mark but multiword"))
}

func TestCaseVariantsCoversAllForms(t *testing.T) {
	variants := caseVariants("user_name")
	require.Contains(t, variants, "USER_NAME")
	require.Contains(t, variants, "user_name")
	require.Contains(t, variants, "UserName")
	require.Contains(t, variants, "userName")
}

type fakeVectorStore struct {
	semanticHits []vectorstore.SearchResult
	codeHits     []vectorstore.SearchResult
	nameHits     []vectorstore.SearchResult
}

func (f *fakeVectorStore) Search(_ context.Context, collection string, _ []float32, _ uint64, _ []string) ([]vectorstore.SearchResult, error) {
	if collection == vectorstore.SemanticCollection {
		return f.semanticHits, nil
	}
	return f.codeHits, nil
}

func (f *fakeVectorStore) ScrollByName(_ context.Context, _, _ string, _ uint32) ([]vectorstore.SearchResult, error) {
	return f.nameHits, nil
}

func (f *fakeVectorStore) CollectionInfo(_ context.Context, collection string) (uint64, error) {
	if collection == vectorstore.SemanticCollection {
		return uint64(len(f.semanticHits)), nil
	}
	return uint64(len(f.codeHits)), nil
}

type fakeProvider struct{ dim int }

func (p *fakeProvider) EncodeSemantic(_ context.Context, texts []string) ([][]float32, error) {
	return fillVecs(texts, p.dim), nil
}
func (p *fakeProvider) EncodeCode(_ context.Context, texts []string) ([][]float32, error) {
	return fillVecs(texts, p.dim), nil
}
func (p *fakeProvider) CheckStatus(context.Context) (embedding.Status, error) {
	return embedding.Status{Available: true}, nil
}
func (p *fakeProvider) Warmup(context.Context) error         { return nil }
func (p *fakeProvider) EmbeddingDim() int                    { return p.dim }
func (p *fakeProvider) ProviderType() embedding.ProviderType { return embedding.OpenAI }

func fillVecs(texts []string, dim int) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out
}

func TestSearchFusesSemanticAndCodeHits(t *testing.T) {
	store := &fakeVectorStore{
		semanticHits: []vectorstore.SearchResult{
			{Score: 0.9, Payload: map[string]any{"entity_id": "a", "name": "Foo", "file_path": "src/foo.go", "entity_type": "Callable"}},
		},
		codeHits: []vectorstore.SearchResult{
			{Score: 0.8, Payload: map[string]any{"entity_id": "a", "name": "Foo", "file_path": "src/foo.go", "entity_type": "Callable"}},
			{Score: 0.7, Payload: map[string]any{"entity_id": "b", "name": "Bar", "file_path": "src/bar.go", "entity_type": "Callable"}},
		},
	}
	s := New(store, &fakeProvider{dim: 4})

	results, err := s.Search(context.Background(), "how does Foo work?", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].EntityID)
}

func TestSearchIdentifierTriesNameScroll(t *testing.T) {
	store := &fakeVectorStore{
		nameHits: []vectorstore.SearchResult{
			{Score: 1.0, Payload: map[string]any{"entity_id": "x", "name": "ParseConfig", "file_path": "src/config.go"}},
		},
	}
	s := New(store, &fakeProvider{dim: 4})

	results, err := s.Search(context.Background(), "ParseConfig", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "x", results[0].EntityID)
	require.Greater(t, results[0].Score, 0.3)
}

func TestSingleModeCodeAppliesRescale(t *testing.T) {
	store := &fakeVectorStore{
		codeHits: []vectorstore.SearchResult{
			{Score: 0.75, Payload: map[string]any{"entity_id": "a", "name": "Foo", "file_path": "src/foo.go"}},
		},
	}
	s := New(store, &fakeProvider{dim: 4})

	results, err := s.Search(context.Background(), "foo", Options{Mode: ModeCode, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 0.675, results[0].Score, 0.001)
}

func TestIndexStatusReportsEmptyWhenNoPoints(t *testing.T) {
	store := &fakeVectorStore{}
	s := New(store, &fakeProvider{dim: 4})

	status, err := s.IndexStatus(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsIndexEmpty())
}

func TestContextBonusPenalizesTestPaths(t *testing.T) {
	b := contextBonus("parse config", map[string]any{"file_path": "internal/test/config_test.go"})
	require.Less(t, b, 0.0)
}

func TestContextBonusBoostsSrcPaths(t *testing.T) {
	b := contextBonus("parse config", map[string]any{"file_path": "project/src/config.go"})
	require.Greater(t, b, 0.0)
}
