// Package crossref persists and indexes edges whose endpoints straddle
// partitions (spec §3.3, §4.2).
package crossref

import "github.com/codeprysm/codeprysm/internal/graph"

// SchemaVersion is the cross-ref store's schema version (spec §6.3).
const SchemaVersion = "1.1"

// CrossRef is one cross-partition edge, carrying both endpoints'
// partition IDs alongside the edge's own attributes.
type CrossRef struct {
	SourceID        string
	SourcePartition string
	TargetID        string
	TargetPartition string
	EdgeType        graph.EdgeType
	RefLine         int
	Ident           string
	VersionSpec     string
	IsDevDependency bool
}

// Edge projects the CrossRef onto a plain graph.Edge, discarding the
// partition-membership bookkeeping.
func (c CrossRef) Edge() *graph.Edge {
	return &graph.Edge{
		Source:          c.SourceID,
		Target:          c.TargetID,
		EdgeType:        c.EdgeType,
		RefLine:         c.RefLine,
		Ident:           c.Ident,
		VersionSpec:     c.VersionSpec,
		IsDevDependency: c.IsDevDependency,
	}
}

// DedupKey is the edge dedup key of spec §3.2, (source, target,
// edge_type, ref_line); the partitions are not part of it, matching the
// cross-ref table's unique key (source_id, target_id, edge_type,
// ref_line) per spec §6.3.
func (c CrossRef) DedupKey() [4]string {
	return c.Edge().DedupKey()
}
