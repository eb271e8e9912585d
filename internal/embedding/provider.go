// Package embedding defines the embedding provider abstraction (C11)
// and its concrete implementations (C12): local in-process, AzureML-
// style remote, and OpenAI-compatible remote (spec §4.9, §4.10).
package embedding

import (
	"context"
	"fmt"
)

// ProviderType identifies which concrete implementation backs a
// Provider.
type ProviderType string

const (
	Local   ProviderType = "local"
	AzureML ProviderType = "azure_ml"
	OpenAI  ProviderType = "openai"
)

// Status reports a provider's current readiness.
type Status struct {
	Available  bool
	SemanticOK bool
	CodeOK     bool
	Device     string
	LatencyMS  int64
	Error      string
}

// Provider is the async embedding interface consumed by the indexer
// and searcher (spec §4.9). Two text inputs yield two vectors in input
// order; empty input yields empty output without a round trip. All
// vectors returned by one provider share a dimension.
type Provider interface {
	EncodeSemantic(ctx context.Context, texts []string) ([][]float32, error)
	EncodeCode(ctx context.Context, texts []string) ([][]float32, error)
	CheckStatus(ctx context.Context) (Status, error)
	Warmup(ctx context.Context) error
	EmbeddingDim() int
	ProviderType() ProviderType
}

// DimensionMismatchError reports that a provider returned vectors of
// an unexpected width.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// validateDims checks that every vector in vecs has width dim.
func validateDims(vecs [][]float32, dim int) error {
	for _, v := range vecs {
		if len(v) != dim {
			return &DimensionMismatchError{Expected: dim, Got: len(v)}
		}
	}
	return nil
}
