// Package indexer drives the three-phase pipeline that turns graph
// nodes into vector-store points: collect source slices and build
// semantic text, batch-encode with the active embedding provider, and
// upsert into the semantic and code collections (spec §4.13).
package indexer

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/codeprysm/codeprysm/internal/embedding"
	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/merkle"
	"github.com/codeprysm/codeprysm/internal/semantictext"
	"github.com/codeprysm/codeprysm/internal/vectorstore"
)

const (
	defaultEmbeddingBatchSize = 200
	defaultUpsertBatchSize    = 100
)

// IndexStats reports the outcome of one indexing call.
type IndexStats struct {
	TotalProcessed  int
	TotalIndexed    int
	TotalSkipped    int
	TotalFailed     int
	SemanticIndexed int
	CodeIndexed     int
}

func (s *IndexStats) merge(other IndexStats) {
	s.TotalProcessed += other.TotalProcessed
	s.TotalIndexed += other.TotalIndexed
	s.TotalSkipped += other.TotalSkipped
	s.TotalFailed += other.TotalFailed
	s.SemanticIndexed += other.SemanticIndexed
	s.CodeIndexed += other.CodeIndexed
}

// nodeData is the buffered record produced by phase 1.
type nodeData struct {
	node         *graph.Node
	pointID      uint64
	semanticText string
	codeText     string
	payload      map[string]any
}

// SourceReader loads the raw source slice for a node, tolerant of
// files that have shrunk since the graph was built.
type SourceReader func(file string, startLine, endLine int) (string, error)

// vectorStore is the subset of *vectorstore.Client the indexer needs,
// narrowed to an interface so tests can substitute a fake.
type vectorStore interface {
	EnsureCollections(ctx context.Context, dim uint64) error
	DeleteRepoPoints(ctx context.Context, collection string) error
	DeletePointsByFile(ctx context.Context, collection, filePath string) error
	UpsertPointsBatched(ctx context.Context, collection string, points []vectorstore.Point, batchSize int) error
}

// Indexer ties a vector-store client, an embedding provider, and a
// repository root together.
type Indexer struct {
	store              vectorStore
	provider           embedding.Provider
	repoID             string
	readSource         SourceReader
	embeddingBatchSize int
	upsertBatchSize    int
	logger             *slog.Logger
}

// Options configures an Indexer. Zero values fall back to spec
// defaults.
type Options struct {
	Store              vectorStore
	Provider           embedding.Provider
	RepoID             string
	ReadSource         SourceReader
	EmbeddingBatchSize int
	UpsertBatchSize    int
	Logger             *slog.Logger
}

// New constructs an Indexer from opts.
func New(opts Options) *Indexer {
	idx := &Indexer{
		store:              opts.Store,
		provider:           opts.Provider,
		repoID:             opts.RepoID,
		readSource:         opts.ReadSource,
		embeddingBatchSize: opts.EmbeddingBatchSize,
		upsertBatchSize:    opts.UpsertBatchSize,
		logger:             opts.Logger,
	}
	if idx.readSource == nil {
		idx.readSource = readLineSlice
	}
	if idx.embeddingBatchSize <= 0 {
		idx.embeddingBatchSize = defaultEmbeddingBatchSize
	}
	if idx.upsertBatchSize <= 0 {
		idx.upsertBatchSize = defaultUpsertBatchSize
	}
	if idx.logger == nil {
		idx.logger = slog.Default()
	}
	return idx
}

// IndexGraph performs a full rebuild: ensures collections exist,
// deletes all points for the current repo_id from both collections,
// then indexes every node in g.
func (ix *Indexer) IndexGraph(ctx context.Context, g *graph.Graph) (IndexStats, error) {
	if err := ix.store.EnsureCollections(ctx, uint64(ix.provider.EmbeddingDim())); err != nil {
		return IndexStats{}, err
	}
	if err := ix.store.DeleteRepoPoints(ctx, vectorstore.SemanticCollection); err != nil {
		return IndexStats{}, err
	}
	if err := ix.store.DeleteRepoPoints(ctx, vectorstore.CodeCollection); err != nil {
		return IndexStats{}, err
	}

	g.RLock()
	nodes := g.IterNodes()
	g.RUnlock()

	return ix.IndexNodes(ctx, nodes, g)
}

// IndexNodes runs the phase 1/2/3 pipeline over an explicit node set,
// used both by IndexGraph and for partition-scoped incremental calls.
func (ix *Indexer) IndexNodes(ctx context.Context, nodes []*graph.Node, g *graph.Graph) (IndexStats, error) {
	var stats IndexStats

	buffer := ix.collect(nodes, g, &stats)

	for start := 0; start < len(buffer); start += ix.embeddingBatchSize {
		end := start + ix.embeddingBatchSize
		if end > len(buffer) {
			end = len(buffer)
		}
		chunk := buffer[start:end]

		semanticPoints, codePoints, ok := ix.encodeChunk(ctx, chunk)
		if !ok {
			stats.TotalFailed += len(chunk)
			continue
		}

		if err := ix.store.UpsertPointsBatched(ctx, vectorstore.SemanticCollection, semanticPoints, ix.upsertBatchSize); err != nil {
			ix.logger.Warn("upsert semantic points failed", "error", err)
			stats.TotalFailed += len(chunk)
			continue
		}
		if err := ix.store.UpsertPointsBatched(ctx, vectorstore.CodeCollection, codePoints, ix.upsertBatchSize); err != nil {
			ix.logger.Warn("upsert code points failed", "error", err)
			stats.TotalFailed += len(chunk)
			continue
		}

		stats.SemanticIndexed += len(semanticPoints)
		stats.CodeIndexed += len(codePoints)
		stats.TotalIndexed += len(chunk)
	}

	return stats, nil
}

// collect runs phase 1: read source, skip files/repo node/empty
// slices, build semantic text and payload.
func (ix *Indexer) collect(nodes []*graph.Node, g *graph.Graph, stats *IndexStats) []nodeData {
	buffer := make([]nodeData, 0, len(nodes))
	for _, n := range nodes {
		stats.TotalProcessed++
		if n.NodeType == graph.Container && n.Kind == "file" {
			stats.TotalSkipped++
			continue
		}
		if n.ID == "" {
			stats.TotalSkipped++
			continue
		}

		source, err := ix.readSource(n.File, n.Line, n.EndLine)
		if err != nil {
			ix.logger.Warn("read source slice failed", "node", n.ID, "error", err)
			stats.TotalSkipped++
			continue
		}
		if strings.TrimSpace(source) == "" {
			stats.TotalSkipped++
			continue
		}

		g.RLock()
		semanticText := semantictext.Build(g, n, source)
		g.RUnlock()
		payload := map[string]any{
			"repo_id":     ix.repoID,
			"entity_id":   n.ID,
			"name":        nameOf(n.ID),
			"entity_type": string(n.NodeType),
			"kind":        n.Kind,
			"subtype":     n.Subtype,
			"file_path":   n.File,
			"start_line":  n.Line,
			"end_line":    n.EndLine,
		}

		buffer = append(buffer, nodeData{
			node:         n,
			pointID:      vectorstore.PointID(n.ID, ix.repoID),
			semanticText: semanticText,
			codeText:     source,
			payload:      payload,
		})
	}
	return buffer
}

// encodeChunk runs phase 2 for one chunk: encode semantic and code
// text (in parallel for remote providers, sequentially for the local
// one), validate result lengths, and build point records.
func (ix *Indexer) encodeChunk(ctx context.Context, chunk []nodeData) ([]vectorstore.Point, []vectorstore.Point, bool) {
	semanticTexts := make([]string, len(chunk))
	codeTexts := make([]string, len(chunk))
	for i, nd := range chunk {
		semanticTexts[i] = nd.semanticText
		codeTexts[i] = nd.codeText
	}

	var semanticVecs, codeVecs [][]float32
	var semErr, codeErr error

	if ix.provider.ProviderType() == embedding.Local {
		semanticVecs, semErr = ix.provider.EncodeSemantic(ctx, semanticTexts)
		if semErr == nil {
			codeVecs, codeErr = ix.provider.EncodeCode(ctx, codeTexts)
		}
	} else {
		type result struct {
			vecs [][]float32
			err  error
		}
		semCh := make(chan result, 1)
		codeCh := make(chan result, 1)
		go func() {
			v, e := ix.provider.EncodeSemantic(ctx, semanticTexts)
			semCh <- result{v, e}
		}()
		go func() {
			v, e := ix.provider.EncodeCode(ctx, codeTexts)
			codeCh <- result{v, e}
		}()
		semRes := <-semCh
		codeRes := <-codeCh
		semanticVecs, semErr = semRes.vecs, semRes.err
		codeVecs, codeErr = codeRes.vecs, codeRes.err
	}

	if semErr != nil {
		ix.logger.Warn("encode semantic chunk failed", "error", semErr)
		return nil, nil, false
	}
	if codeErr != nil {
		ix.logger.Warn("encode code chunk failed", "error", codeErr)
		return nil, nil, false
	}
	if len(semanticVecs) != len(chunk) || len(codeVecs) != len(chunk) {
		ix.logger.Warn("encode chunk length mismatch", "want", len(chunk), "semantic", len(semanticVecs), "code", len(codeVecs))
		return nil, nil, false
	}

	semanticPoints := make([]vectorstore.Point, len(chunk))
	codePoints := make([]vectorstore.Point, len(chunk))
	for i, nd := range chunk {
		semanticPayload := clonePayload(nd.payload)
		semanticPayload["content"] = nd.semanticText
		semanticPoints[i] = vectorstore.Point{ID: nd.pointID, Vector: semanticVecs[i], Payload: semanticPayload}

		codePayload := clonePayload(nd.payload)
		codePayload["content"] = nd.codeText
		codePoints[i] = vectorstore.Point{ID: nd.pointID, Vector: codeVecs[i], Payload: codePayload}
	}
	return semanticPoints, codePoints, true
}

func clonePayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

func nameOf(id string) string {
	if idx := strings.LastIndexByte(id, ':'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// IndexChanges runs the incremental path: delete points by file for
// every modified and deleted path from both collections, then indexes
// nodes whose file is in added ∪ modified.
func (ix *Indexer) IndexChanges(ctx context.Context, g *graph.Graph, changes merkle.Changes) (IndexStats, error) {
	for _, file := range append(append([]string{}, changes.Modified...), changes.Deleted...) {
		if err := ix.store.DeletePointsByFile(ctx, vectorstore.SemanticCollection, file); err != nil {
			return IndexStats{}, err
		}
		if err := ix.store.DeletePointsByFile(ctx, vectorstore.CodeCollection, file); err != nil {
			return IndexStats{}, err
		}
	}

	toProcess := make(map[string]bool, len(changes.Added)+len(changes.Modified))
	for _, f := range changes.Added {
		toProcess[f] = true
	}
	for _, f := range changes.Modified {
		toProcess[f] = true
	}

	g.RLock()
	var nodes []*graph.Node
	for _, n := range g.IterNodes() {
		if toProcess[n.File] {
			nodes = append(nodes, n)
		}
	}
	g.RUnlock()

	return ix.IndexNodes(ctx, nodes, g)
}

// readLineSlice is the default SourceReader: a 1-based inclusive line
// slice, tolerant of files shorter than the requested range.
func readLineSlice(file string, startLine, endLine int) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(data), "\n")
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) {
		return "", nil
	}
	return strings.Join(lines[startLine-1:endLine], "\n"), nil
}
