package search

import (
	"context"
	"math"
	"strings"

	"github.com/codeprysm/codeprysm/internal/embedding"
	"github.com/codeprysm/codeprysm/internal/vectorstore"
)

const (
	rrfK             = 60
	minOversample    = 50
	caseVariantLimit = 5
)

// Mode selects a single-collection search variant. The zero value
// routes to the full hybrid flow.
type Mode string

const (
	ModeHybrid Mode = ""
	ModeCode   Mode = "code"
	ModeInfo   Mode = "info"
)

// Result is one scored hit returned to the caller.
type Result struct {
	EntityID string
	Score    float64
	Payload  map[string]any
	FoundVia []string
}

// vectorStore is the subset of *vectorstore.Client the searcher needs.
type vectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, limit uint64, entityTypes []string) ([]vectorstore.SearchResult, error)
	ScrollByName(ctx context.Context, collection, name string, limit uint32) ([]vectorstore.SearchResult, error)
	CollectionInfo(ctx context.Context, name string) (uint64, error)
}

// Searcher runs hybrid queries against a vector store using a pair of
// embedding providers (semantic + code encoders may be the same
// underlying Provider).
type Searcher struct {
	store    vectorStore
	provider embedding.Provider
}

// New constructs a Searcher.
func New(store vectorStore, provider embedding.Provider) *Searcher {
	return &Searcher{store: store, provider: provider}
}

// Options narrows a search to an optional list of entity types and a
// result limit.
type Options struct {
	Mode        Mode
	EntityTypes []string
	Limit       int
}

// entityHit accumulates every signal collected for one entity ID
// across the semantic, code, and name-scroll result sets.
type entityHit struct {
	entityID string
	payload  map[string]any
	semRank  int
	hasSem   bool
	codeRank int
	hasCode  bool
	hasName  bool
}

// Search runs the full query pipeline and returns up to opts.Limit
// results ordered by descending fused score.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	oversample := uint64(limit * 4)
	if oversample < minOversample {
		oversample = minOversample
	}

	class := Classify(query)
	weights := WeightsFor(class)

	switch opts.Mode {
	case ModeCode:
		return s.singleMode(ctx, query, vectorstore.CodeCollection, opts.EntityTypes, oversample, limit)
	case ModeInfo:
		return s.singleMode(ctx, query, vectorstore.SemanticCollection, opts.EntityTypes, oversample, limit)
	}

	semanticVecs, err := s.provider.EncodeSemantic(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	codeVecs, err := s.provider.EncodeCode(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	var semanticHits, codeHits []vectorstore.SearchResult
	if len(semanticVecs) > 0 {
		semanticHits, err = s.store.Search(ctx, vectorstore.SemanticCollection, semanticVecs[0], oversample, opts.EntityTypes)
		if err != nil {
			return nil, err
		}
	}
	if len(codeVecs) > 0 {
		codeHits, err = s.store.Search(ctx, vectorstore.CodeCollection, codeVecs[0], oversample, opts.EntityTypes)
		if err != nil {
			return nil, err
		}
	}

	var nameHits []vectorstore.SearchResult
	if class == Identifier {
		nameHits, err = s.scrollByNameWithVariants(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	hits := fuse(semanticHits, codeHits, nameHits, weights, query)
	return topN(hits, limit), nil
}

// scrollByNameWithVariants tries the exact query first, then case
// variants up to 5 hits each, stopping once one variant yields a hit
// (spec §4.14 step 3).
func (s *Searcher) scrollByNameWithVariants(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	exact, err := s.store.ScrollByName(ctx, vectorstore.CodeCollection, query, caseVariantLimit)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}
	for _, variant := range caseVariants(query) {
		if variant == query {
			continue
		}
		hits, err := s.store.ScrollByName(ctx, vectorstore.CodeCollection, variant, caseVariantLimit)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			return hits, nil
		}
	}
	return nil, nil
}

// fuse combines the three result sets with Reciprocal Rank Fusion and
// applies the bonus/penalty terms (spec §4.14 step 4).
func fuse(semanticHits, codeHits, nameHits []vectorstore.SearchResult, weights Weights, query string) []Result {
	entities := make(map[string]*entityHit)

	get := func(id string, payload map[string]any) *entityHit {
		if e, ok := entities[id]; ok {
			return e
		}
		e := &entityHit{entityID: id, payload: payload}
		entities[id] = e
		return e
	}

	for rank, hit := range semanticHits {
		id := entityIDOf(hit)
		e := get(id, hit.Payload)
		e.hasSem = true
		e.semRank = rank
	}
	for rank, hit := range codeHits {
		id := entityIDOf(hit)
		e := get(id, hit.Payload)
		e.hasCode = true
		e.codeRank = rank
	}
	for _, hit := range nameHits {
		id := entityIDOf(hit)
		e := get(id, hit.Payload)
		e.hasName = true
	}

	results := make([]Result, 0, len(entities))
	for _, e := range entities {
		semRRF := 0.0
		if e.hasSem {
			semRRF = weights.Semantic / float64(rrfK+e.semRank+1)
		}
		codeRRF := 0.0
		if e.hasCode {
			codeRRF = weights.Code / float64(rrfK+e.codeRank+1)
		}
		nameRRF := 0.0
		if e.hasName {
			nameRRF = 1.0 / float64(rrfK+1)
		}
		scaledRRF := 30 * (semRRF + codeRRF + nameRRF)

		name, _ := e.payload["name"].(string)
		exact := exactMatchBonus(query, name, e.hasName)
		typeB := typeBonus(query, e.payload)
		contextB := contextBonus(query, e.payload)

		score := clamp01(scaledRRF + exact + typeB + contextB)
		results = append(results, Result{EntityID: e.entityID, Score: score, Payload: e.payload, FoundVia: foundVia(e)})
	}
	return results
}

// foundVia lists which result sets an entity was found in, in the
// order semantic, code, name (spec §4.14 step 4; original hybrid.rs's
// found_via list).
func foundVia(e *entityHit) []string {
	var via []string
	if e.hasSem {
		via = append(via, "semantic")
	}
	if e.hasCode {
		via = append(via, "code")
	}
	if e.hasName {
		via = append(via, "name")
	}
	return via
}

func entityIDOf(hit vectorstore.SearchResult) string {
	if id, ok := hit.Payload["entity_id"].(string); ok {
		return id
	}
	return ""
}

// exactMatchBonus implements the exact/stripped/substring bonus
// ladder (spec §4.14 step 4).
func exactMatchBonus(query, name string, nameHit bool) float64 {
	if name == "" {
		return 0
	}
	if nameHit || strings.EqualFold(query, name) {
		return 0.35
	}
	if strings.EqualFold(stripSeparators(query), stripSeparators(name)) {
		return 0.25
	}
	q := strings.ToLower(query)
	n := strings.ToLower(name)
	if len(q) >= 3 && strings.Contains(n, q) {
		overlap := float64(len(q)) / float64(len(n))
		if overlap > 0.3 {
			return 0.15 * float64(len(q)) / float64(len(n))
		}
	}
	if strings.Contains(q, n) && n != "" {
		return 0.08
	}
	return 0
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToLower(s)
}

var typeHints = map[string]string{
	"class":    "Container",
	"function": "Callable",
	"method":   "Callable",
	"data":     "Data",
	"variable": "Data",
}

// typeBonus adds 0.08 when the query hints at a structural kind
// (class/function/data) that matches the entity's type.
func typeBonus(query string, payload map[string]any) float64 {
	entityType, _ := payload["entity_type"].(string)
	lower := strings.ToLower(query)
	for hint, et := range typeHints {
		if strings.Contains(lower, hint) && entityType == et {
			return 0.08
		}
	}
	return 0
}

// contextBonus applies the src/test path adjustments (spec §4.14 step
// 4): +0.06 for non-test /src/ paths, -0.03 for /test paths when the
// query isn't itself test-related.
func contextBonus(query string, payload map[string]any) float64 {
	path, _ := payload["file_path"].(string)
	lowerPath := strings.ToLower(path)
	lowerQuery := strings.ToLower(query)
	queryIsTestRelated := strings.Contains(lowerQuery, "test")

	if strings.Contains(lowerPath, "/test") {
		if !queryIsTestRelated {
			return -0.03
		}
		return 0
	}
	if strings.Contains(lowerPath, "/src/") {
		return 0.06
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func topN(results []Result, n int) []Result {
	sortResultsDesc(results)
	if len(results) > n {
		results = results[:n]
	}
	return results
}

func sortResultsDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// singleMode runs mode="code"/"info": a single-collection search with
// a linearly rescaled raw score, still applying exact-match/type/
// context bonuses (spec §4.14 single-mode variants).
func (s *Searcher) singleMode(ctx context.Context, query, collection string, entityTypes []string, oversample uint64, limit int) ([]Result, error) {
	var vec [][]float32
	var err error
	if collection == vectorstore.CodeCollection {
		vec, err = s.provider.EncodeCode(ctx, []string{query})
	} else {
		vec, err = s.provider.EncodeSemantic(ctx, []string{query})
	}
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil
	}

	hits, err := s.store.Search(ctx, collection, vec[0], oversample, entityTypes)
	if err != nil {
		return nil, err
	}

	via := "semantic"
	if collection == vectorstore.CodeCollection {
		via = "code"
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		name, _ := hit.Payload["name"].(string)
		score := clamp01(rescaleRawScore(float64(hit.Score)) +
			exactMatchBonus(query, name, false) +
			typeBonus(query, hit.Payload) +
			contextBonus(query, hit.Payload))
		results = append(results, Result{EntityID: entityIDOf(hit), Score: score, Payload: hit.Payload, FoundVia: []string{via}})
	}
	return topN(results, limit), nil
}

// rescaleRawScore maps a raw similarity in [0.5, 1.0] to [0, 0.65], and
// values at or below 0.5 scale proportionally from 0 (spec §4.14).
func rescaleRawScore(raw float64) float64 {
	if raw <= 0.5 {
		return raw * 0.65 / 0.5
	}
	return (raw - 0.5) / 0.5 * 0.65
}
