// Package graph defines the typed node/edge data model and identity
// scheme shared by every other core package.
package graph

import "strings"

// NodeType classifies a node's structural role in the graph.
type NodeType string

const (
	// Container is a file, class, module, namespace, or similar
	// structural grouping. Legacy "File" rows are stored as Container
	// with Kind "file".
	Container NodeType = "Container"
	// Callable is a function, method, or other invocable entity.
	Callable NodeType = "Callable"
	// Data is a variable, field, constant, or other non-callable value.
	Data NodeType = "Data"
)

// Metadata carries free-form structural facts about a node that don't
// warrant their own column.
type Metadata struct {
	Visibility string   `json:"visibility,omitempty"`
	IsStatic   bool     `json:"is_static,omitempty"`
	IsAsync    bool     `json:"is_async,omitempty"`
	IsAbstract bool     `json:"is_abstract,omitempty"`
	IsVirtual  bool     `json:"is_virtual,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Scope      string   `json:"scope,omitempty"`

	// Extra holds any additional string-valued facts a producer wants
	// to attach without a schema change.
	Extra map[string]string `json:"extra,omitempty"`
}

// IsEmpty reports whether m carries no information at all, used to
// decide whether metadata should serialize as NULL (spec §4.1 row
// mapping rules).
func (m Metadata) IsEmpty() bool {
	return m.Visibility == "" && !m.IsStatic && !m.IsAsync && !m.IsAbstract &&
		!m.IsVirtual && len(m.Modifiers) == 0 && len(m.Decorators) == 0 &&
		m.Scope == "" && len(m.Extra) == 0
}

// Node is a single entity in the code graph: a file, a type, a
// function, a variable, and so on.
type Node struct {
	// ID is the stable identity: "file[:container[:member]]".
	ID string

	NodeType NodeType
	Kind     string // e.g. "class", "method", "function", "variable", "file"
	Subtype  string

	File     string // repo-relative POSIX path
	Line     int    // 1-based inclusive
	EndLine  int    // 1-based inclusive

	Text     string // optional preview
	Hash     string // file content hash, for file nodes
	Metadata Metadata
}

// Clone returns a deep copy of n so callers can hold it without
// aliasing graph-manager-owned state (spec §4.6: accessors return
// owned clones, never references).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if len(n.Metadata.Modifiers) > 0 {
		cp.Metadata.Modifiers = append([]string(nil), n.Metadata.Modifiers...)
	}
	if len(n.Metadata.Decorators) > 0 {
		cp.Metadata.Decorators = append([]string(nil), n.Metadata.Decorators...)
	}
	if len(n.Metadata.Extra) > 0 {
		cp.Metadata.Extra = make(map[string]string, len(n.Metadata.Extra))
		for k, v := range n.Metadata.Extra {
			cp.Metadata.Extra[k] = v
		}
	}
	return &cp
}

// FilePrefix returns the file-path component of a node ID: everything
// before the first ':'. Used by lazygraph partition lookup (§4.6.1).
func FilePrefix(nodeID string) string {
	if idx := strings.IndexByte(nodeID, ':'); idx >= 0 {
		return nodeID[:idx]
	}
	return nodeID
}

// NormalizeNodeType maps legacy/unknown wire values onto the current
// NodeType set: legacy "FILE" becomes Container with Kind forced to
// "file" (spec §4.1, §7).
func NormalizeNodeType(raw string, kind string) (NodeType, string) {
	switch strings.ToUpper(raw) {
	case "FILE":
		return Container, "file"
	case "CONTAINER":
		return Container, kind
	case "CALLABLE":
		return Callable, kind
	case "DATA":
		return Data, kind
	default:
		return Container, kind
	}
}
