package search

import (
	"context"

	"github.com/codeprysm/codeprysm/internal/vectorstore"
)

// IndexStatus reports per-collection point counts.
type IndexStatus struct {
	SemanticPoints uint64
	CodePoints     uint64
}

// IndexStatus returns per-collection cardinality for both built-in
// collections.
func (s *Searcher) IndexStatus(ctx context.Context) (IndexStatus, error) {
	semantic, err := s.store.CollectionInfo(ctx, vectorstore.SemanticCollection)
	if err != nil {
		return IndexStatus{}, err
	}
	code, err := s.store.CollectionInfo(ctx, vectorstore.CodeCollection)
	if err != nil {
		return IndexStatus{}, err
	}
	return IndexStatus{SemanticPoints: semantic, CodePoints: code}, nil
}

// IsIndexEmpty is true when both collections are empty (or absent,
// which CollectionInfo reports as an error the caller should treat as
// zero before calling this helper).
func (st IndexStatus) IsIndexEmpty() bool {
	return st.SemanticPoints == 0 && st.CodePoints == 0
}
