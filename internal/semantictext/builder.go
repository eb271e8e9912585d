// Package semantictext turns a graph node and its source slice into
// the natural-language description text fed to the semantic embedder
// (spec §4.12). Files and the repository root node are never passed
// in; callers filter those out before reaching this package.
package semantictext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codeprysm/codeprysm/internal/graph"
)

const (
	maxDecorators  = 3
	maxParamNames  = 10
	maxChildren    = 5
	maxRefs        = 5
	pathComponents = 3
	previewLimit   = 300
)

// Build constructs the joined description string for node, given its
// raw source slice and the graph it belongs to (for parent/Uses/Contains
// lookups). Callers must already hold at least a read lock on g, since
// Build uses the *Locked graph accessors.
func Build(g *graph.Graph, n *graph.Node, source string) string {
	var parts []string

	parts = append(parts, entityDescription(n))

	if n.NodeType == graph.Container {
		if clause := inheritanceClause(g, n); clause != "" {
			parts = append(parts, clause)
		}
	}

	if n.NodeType == graph.Callable {
		if params := parameterList(source); params != "" {
			parts = append(parts, params)
		}
	}

	if n.NodeType == graph.Container && n.Kind != "file" {
		if clause := membersClause(g, n); clause != "" {
			parts = append(parts, clause)
		}
	}

	if parent := parentContext(g, n); parent != "" {
		parts = append(parts, parent)
	}

	parts = append(parts, fmt.Sprintf("in file %s", shortPath(n.File)))

	if refs := referencesClause(g, n); refs != "" {
		parts = append(parts, refs)
	}

	if tags := keywordTags(n, source); tags != "" {
		parts = append(parts, tags)
	}

	parts = append(parts, fmt.Sprintf("code: %s", preview(source)))

	return strings.Join(parts, ". ")
}

// entityDescription builds step 1: visibility, modifiers, type
// descriptor, name, and decorators.
func entityDescription(n *graph.Node) string {
	var words []string
	if n.Metadata.Visibility != "" {
		words = append(words, n.Metadata.Visibility)
	}
	if n.Metadata.IsStatic {
		words = append(words, "static")
	}
	if n.Metadata.IsAsync {
		words = append(words, "async")
	}
	if n.Metadata.IsAbstract {
		words = append(words, "abstract")
	}
	if n.Metadata.IsVirtual {
		words = append(words, "virtual")
	}
	words = append(words, n.Metadata.Modifiers...)

	kind := n.Kind
	if kind == "" {
		kind = string(n.NodeType)
	}
	words = append(words, kind)
	words = append(words, nameOf(n.ID))

	desc := strings.Join(words, " ")

	decorators := n.Metadata.Decorators
	if len(decorators) > maxDecorators {
		decorators = decorators[:maxDecorators]
	}
	if len(decorators) > 0 {
		desc += " decorated with " + strings.Join(decorators, ", ")
	}
	return desc
}

// nameOf returns the last ':'-delimited component of a node ID.
func nameOf(id string) string {
	if idx := strings.LastIndexByte(id, ':'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// inheritanceClause builds step 2: extends/implements from outgoing
// Uses edges that target a Container. Targets whose kind/subtype is
// "interface" are routed to implements, everything else to extends.
func inheritanceClause(g *graph.Graph, n *graph.Node) string {
	var extends, implements []string
	for _, e := range g.OutgoingLocked(n.ID) {
		if e.EdgeType != graph.Uses {
			continue
		}
		target := g.GetNodeLocked(e.Target)
		if target == nil || target.NodeType != graph.Container {
			continue
		}
		name := nameOf(target.ID)
		if target.Kind == "interface" || target.Subtype == "interface" {
			implements = append(implements, name)
		} else {
			extends = append(extends, name)
		}
	}
	var clause []string
	if len(extends) > 0 {
		clause = append(clause, "extends "+strings.Join(extends, ", "))
	}
	if len(implements) > 0 {
		clause = append(clause, "implements "+strings.Join(implements, ", "))
	}
	return strings.Join(clause, " ")
}

var parenArgsRe = regexp.MustCompile(`\(([^()]*)\)`)

// parameterList builds step 3: the parameter names extracted from the
// first (...) in the source slice, skipping self/this/cls receivers.
func parameterList(source string) string {
	m := parenArgsRe.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	raw := strings.TrimSpace(m[1])
	if raw == "" {
		return ""
	}
	fields := strings.Split(raw, ",")
	var names []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		name := extractParamName(f)
		if name == "" || name == "self" || name == "this" || name == "cls" {
			continue
		}
		names = append(names, name)
		if len(names) >= maxParamNames {
			break
		}
	}
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s)", strings.Join(names, ", "))
}

// extractParamName handles "name: type", "type name", and
// "name = default" parameter forms.
func extractParamName(field string) string {
	if idx := strings.Index(field, "="); idx >= 0 {
		field = strings.TrimSpace(field[:idx])
	}
	if idx := strings.Index(field, ":"); idx >= 0 {
		return strings.TrimSpace(field[:idx])
	}
	fields := strings.Fields(field)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "*")
}

// membersClause builds step 4: methods/properties/fields drawn from
// Contains children, each capped at 5.
func membersClause(g *graph.Graph, n *graph.Node) string {
	var methods, properties, fields []string
	for _, e := range g.OutgoingLocked(n.ID) {
		if e.EdgeType != graph.Contains {
			continue
		}
		child := g.GetNodeLocked(e.Target)
		if child == nil {
			continue
		}
		name := nameOf(child.ID)
		switch {
		case child.NodeType == graph.Callable:
			methods = append(methods, name)
		case child.Kind == "property":
			properties = append(properties, name)
		case child.NodeType == graph.Data:
			fields = append(fields, name)
		}
	}
	var clause []string
	if s := capJoin(methods, maxChildren); s != "" {
		clause = append(clause, "methods "+s)
	}
	if s := capJoin(properties, maxChildren); s != "" {
		clause = append(clause, "properties "+s)
	}
	if s := capJoin(fields, maxChildren); s != "" {
		clause = append(clause, "fields "+s)
	}
	if len(clause) == 0 {
		return ""
	}
	return "with " + strings.Join(clause, ", ")
}

func capJoin(items []string, cap int) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) > cap {
		items = items[:cap]
	}
	return strings.Join(items, ", ")
}

// parentContext builds step 5: "in {parent-type} {parent-name}" when
// the node's containing parent (via incoming Contains) is not a file.
func parentContext(g *graph.Graph, n *graph.Node) string {
	for _, e := range g.IncomingLocked(n.ID) {
		if e.EdgeType != graph.Contains {
			continue
		}
		parent := g.GetNodeLocked(e.Source)
		if parent == nil || parent.Kind == "file" {
			continue
		}
		kind := parent.Kind
		if kind == "" {
			kind = string(parent.NodeType)
		}
		return fmt.Sprintf("in %s %s", kind, nameOf(parent.ID))
	}
	return ""
}

// shortPath returns the last 3 path components of a repo-relative
// POSIX path (step 6).
func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > pathComponents {
		parts = parts[len(parts)-pathComponents:]
	}
	return strings.Join(parts, "/")
}

// referencesClause builds step 7: calls/uses-types/uses from outgoing
// Uses edges, each capped at 5.
func referencesClause(g *graph.Graph, n *graph.Node) string {
	var calls, usesTypes, uses []string
	for _, e := range g.OutgoingLocked(n.ID) {
		if e.EdgeType != graph.Uses {
			continue
		}
		target := g.GetNodeLocked(e.Target)
		if target == nil {
			continue
		}
		name := nameOf(target.ID)
		switch target.NodeType {
		case graph.Callable:
			calls = append(calls, name)
		case graph.Container:
			usesTypes = append(usesTypes, name)
		default:
			uses = append(uses, name)
		}
	}
	var clause []string
	if s := capJoin(calls, maxRefs); s != "" {
		clause = append(clause, "calls "+s)
	}
	if s := capJoin(usesTypes, maxRefs); s != "" {
		clause = append(clause, "uses types "+s)
	}
	if s := capJoin(uses, maxRefs); s != "" {
		clause = append(clause, "uses "+s)
	}
	return strings.Join(clause, ", ")
}

// preview builds step 9: whitespace-normalized code truncated to 300
// characters at the last whitespace boundary before the limit.
func preview(source string) string {
	normalized := strings.Join(strings.Fields(source), " ")
	if len(normalized) <= previewLimit {
		return normalized
	}
	cut := strings.LastIndexByte(normalized[:previewLimit], ' ')
	if cut <= 0 {
		cut = previewLimit
	}
	return normalized[:cut] + "..."
}
