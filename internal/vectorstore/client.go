// Package vectorstore wraps the Qdrant wire API behind the
// point-and-payload shape the hybrid searcher and indexer need (spec
// §4.11): two collections, deterministic point IDs, and a mandatory
// repo_id filter on every operation for multi-tenant isolation.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/codeprysm/codeprysm/internal/telemetry"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the OTel tracer for vector-store spans. It forwards to the
// global no-op provider until telemetry.Init runs.
var tracer = telemetry.Tracer("github.com/codeprysm/codeprysm/vectorstore")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// Collection names for the two fixed collections (spec §4.11).
const (
	SemanticCollection = "semantic_search"
	CodeCollection     = "code_search"
)

// RepoIDPayloadField and the other required keyword-indexed payload
// fields (spec §4.11).
const (
	RepoIDPayloadField     = "repo_id"
	EntityTypePayloadField = "entity_type"
	KindPayloadField       = "kind"
	FilePathPayloadField   = "file_path"
	NamePayloadField       = "name"
)

// requiredPayloadIndexes lists every payload field that must have a
// keyword index created at collection creation time.
var requiredPayloadIndexes = []string{
	RepoIDPayloadField, EntityTypePayloadField, KindPayloadField, FilePathPayloadField, NamePayloadField,
}

// CollectionConfig describes a collection's vector parameters.
type CollectionConfig struct {
	Name     string
	Dim      uint64
	Distance qdrant.Distance
}

// Point is one upsertable record.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// SearchResult is a scored hit returned by Search or ScrollByName.
type SearchResult struct {
	ID      uint64
	Score   float32
	Payload map[string]any
}

// Client wraps a Qdrant gRPC connection scoped to one repository.
type Client struct {
	conn   *qdrant.Client
	repoID string
}

// Config configures the underlying Qdrant connection.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	RepoID string
}

// New dials a Qdrant instance and returns a repo-scoped Client.
func New(cfg Config) (*Client, error) {
	conn, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant: %w", err)
	}
	if cfg.RepoID == "" {
		return nil, fmt.Errorf("vectorstore: RepoID is required")
	}
	return &Client{conn: conn, repoID: cfg.RepoID}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// repoFilter builds the mandatory repo_id == self.repo_id must-clause
// every operation includes (spec §4.11).
func (c *Client) repoFilter() *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(RepoIDPayloadField, c.repoID),
		},
	}
}

// CollectionExists reports whether name already exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := c.conn.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("vectorstore: collection_exists %s: %w", name, err)
	}
	return ok, nil
}

// CreateCollection creates cfg's collection with cosine distance and
// the required keyword payload indexes.
func (c *Client) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	if cfg.Distance == qdrant.Distance_UnknownDistance {
		cfg.Distance = qdrant.Distance_Cosine
	}
	if err := c.conn.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: cfg.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     cfg.Dim,
			Distance: cfg.Distance,
		}),
	}); err != nil {
		return fmt.Errorf("vectorstore: create_collection %s: %w", cfg.Name, err)
	}

	for _, field := range requiredPayloadIndexes {
		fieldType := qdrant.FieldType_FieldTypeKeyword
		if _, err := c.conn.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: cfg.Name,
			FieldName:      field,
			FieldType:      &fieldType,
		}); err != nil {
			return fmt.Errorf("vectorstore: create payload index %s.%s: %w", cfg.Name, field, err)
		}
	}
	return nil
}

// EnsureCollections creates SemanticCollection and CodeCollection at
// the given dimension if they don't already exist.
func (c *Client) EnsureCollections(ctx context.Context, dim uint64) error {
	for _, name := range []string{SemanticCollection, CodeCollection} {
		exists, err := c.CollectionExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			if err := c.CreateCollection(ctx, CollectionConfig{Name: name, Dim: dim, Distance: qdrant.Distance_Cosine}); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteCollection drops a collection entirely.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.conn.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("vectorstore: delete_collection %s: %w", name, err)
	}
	return nil
}

func toQdrantPoint(p Point) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = qdrant.NewValue(v)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payload,
	}
}

// UpsertPoints upserts points into collection in one call.
func (c *Client) UpsertPoints(ctx context.Context, collection string, points []Point) (err error) {
	if len(points) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "vectorstore.upsert", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.qdrant.collection", collection),
			attribute.Int("db.qdrant.point_count", len(points)),
		))
	defer func() { endSpan(span, err) }()

	qp := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qp[i] = toQdrantPoint(p)
	}
	if _, err = c.conn.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qp,
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("vectorstore: upsert %s: %w", collection, err)
	}
	return nil
}

// UpsertPointsBatched splits points into fixed-size batches before
// upserting, to bound request size (spec §4.13 phase 3 default batch
// size 100).
func (c *Client) UpsertPointsBatched(ctx context.Context, collection string, points []Point, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := c.UpsertPoints(ctx, collection, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a vector similarity search, optionally filtering to
// entityTypes (a should-clause with min_should=1 when non-empty).
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit uint64, entityTypes []string) (results []SearchResult, err error) {
	ctx, span := tracer.Start(ctx, "vectorstore.search", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.qdrant.collection", collection),
			attribute.Int64("db.qdrant.limit", int64(limit)),
		))
	defer func() { endSpan(span, err) }()

	filter := c.repoFilter()
	if len(entityTypes) > 0 {
		should := make([]*qdrant.Condition, len(entityTypes))
		for i, et := range entityTypes {
			should[i] = qdrant.NewMatch(EntityTypePayloadField, et)
		}
		filter.Should = should
		minShould := uint64(1)
		filter.MinShould = &qdrant.MinShould{MinCount: minShould}
	}

	withPayload := qdrant.NewWithPayload(true)
	resp, err := c.conn.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %s: %w", collection, err)
	}
	return fromQdrantScored(resp), nil
}

// DeleteRepoPoints removes every point belonging to this client's
// repo_id from collection.
func (c *Client) DeleteRepoPoints(ctx context.Context, collection string) error {
	if _, err := c.conn.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: c.repoFilter()},
		},
		Wait: qdrant.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("vectorstore: delete_repo_points %s: %w", collection, err)
	}
	return nil
}

// DeletePointsByFile removes every point whose file_path matches
// filePath, scoped to this client's repo_id.
func (c *Client) DeletePointsByFile(ctx context.Context, collection, filePath string) error {
	filter := c.repoFilter()
	filter.Must = append(filter.Must, qdrant.NewMatch(FilePathPayloadField, filePath))
	if _, err := c.conn.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
		Wait: qdrant.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("vectorstore: delete_points_by_file %s %s: %w", collection, filePath, err)
	}
	return nil
}

// ScrollByName performs an exact-name exhaustive scroll, used to
// guarantee identifier hits in hybrid search. Results carry a
// synthetic score of 1.0 (spec §4.11).
func (c *Client) ScrollByName(ctx context.Context, collection, name string, limit uint32) ([]SearchResult, error) {
	filter := c.repoFilter()
	filter.Must = append(filter.Must, qdrant.NewMatch(NamePayloadField, name))

	resp, err := c.conn.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scroll_by_name %s %s: %w", collection, name, err)
	}
	out := make([]SearchResult, 0, len(resp))
	for _, pt := range resp {
		out = append(out, SearchResult{ID: pointIDNum(pt.Id), Score: 1.0, Payload: fromQdrantPayload(pt.Payload)})
	}
	return out, nil
}

// ScrollAll returns up to limit points from collection, scoped to
// this client's repo_id.
func (c *Client) ScrollAll(ctx context.Context, collection string, limit uint32) ([]SearchResult, error) {
	resp, err := c.conn.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         c.repoFilter(),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scroll_all %s: %w", collection, err)
	}
	out := make([]SearchResult, 0, len(resp))
	for _, pt := range resp {
		out = append(out, SearchResult{ID: pointIDNum(pt.Id), Payload: fromQdrantPayload(pt.Payload)})
	}
	return out, nil
}

// CollectionInfo reports cardinality for name.
func (c *Client) CollectionInfo(ctx context.Context, name string) (uint64, error) {
	info, err := c.conn.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: collection_info %s: %w", name, err)
	}
	return info.GetPointsCount(), nil
}

func fromQdrantScored(points []*qdrant.ScoredPoint) []SearchResult {
	out := make([]SearchResult, 0, len(points))
	for _, p := range points {
		out = append(out, SearchResult{ID: pointIDNum(p.Id), Score: p.Score, Payload: fromQdrantPayload(p.Payload)})
	}
	return out
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v.AsInterface()
	}
	return out
}

func pointIDNum(id *qdrant.PointId) uint64 {
	if id == nil {
		return 0
	}
	return id.GetNum()
}
