package partition

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/codeprysm/codeprysm/internal/graph"
)

// nodeRow mirrors the nodes table layout for scanning.
type nodeRow struct {
	ID           string
	Name         sql.NullString
	NodeType     string
	Kind         sql.NullString
	Subtype      sql.NullString
	File         string
	Line         sql.NullInt64
	EndLine      sql.NullInt64
	Text         sql.NullString
	Hash         sql.NullString
	MetadataJSON sql.NullString
}

// toNode converts a scanned row into a graph.Node, applying the row
// mapping rules of spec §4.1: legacy FILE -> Container/kind=file,
// and degrading a bad metadata JSON payload to empty metadata rather
// than failing the read (spec §7).
func (r nodeRow) toNode(logger *slog.Logger) *graph.Node {
	nodeType, kind := graph.NormalizeNodeType(r.NodeType, r.Kind.String)

	n := &graph.Node{
		ID:       r.ID,
		NodeType: nodeType,
		Kind:     kind,
		Subtype:  r.Subtype.String,
		File:     r.File,
		Line:     int(r.Line.Int64),
		EndLine:  int(r.EndLine.Int64),
		Text:     r.Text.String,
		Hash:     r.Hash.String,
	}

	if r.MetadataJSON.Valid && r.MetadataJSON.String != "" {
		var md graph.Metadata
		if err := json.Unmarshal([]byte(r.MetadataJSON.String), &md); err != nil {
			if logger != nil {
				logger.Warn("degrading unparseable node metadata to empty", "node_id", r.ID, "error", err)
			}
		} else {
			n.Metadata = md
		}
	}
	return n
}

// metadataJSON serializes Metadata, returning a NULL-equivalent (empty
// string wrapped in a non-valid NullString) for an empty map per spec
// §4.1: "empty maps serialize as NULL".
func metadataJSON(md graph.Metadata) (sql.NullString, error) {
	if md.IsEmpty() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// edgeRow mirrors the edges table layout for scanning.
type edgeRow struct {
	Source          string
	Target          string
	EdgeType        string
	RefLine         sql.NullInt64
	Ident           sql.NullString
	VersionSpec     sql.NullString
	IsDevDependency sql.NullInt64
}

func (r edgeRow) toEdge() *graph.Edge {
	return &graph.Edge{
		Source:          r.Source,
		Target:          r.Target,
		EdgeType:        graph.NormalizeEdgeType(r.EdgeType),
		RefLine:         int(r.RefLine.Int64),
		Ident:           r.Ident.String,
		VersionSpec:     r.VersionSpec.String,
		IsDevDependency: r.IsDevDependency.Int64 != 0,
	}
}
