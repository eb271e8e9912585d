package semantictext

import (
	"strings"

	"github.com/codeprysm/codeprysm/internal/graph"
)

// tagRule maps a tag to the substrings that trigger it; matches are
// checked against both the node name and the source content,
// case-insensitively.
type tagRule struct {
	tag      string
	patterns []string
}

var patternTable = []tagRule{
	{"error handling", []string{"error", "exception", "panic", "recover", "try", "catch", "err "}},
	{"http", []string{"http", "request", "response", "handler", "endpoint", "route"}},
	{"database", []string{"database", "sql", "query", "repository", "db.", "transaction"}},
	{"authentication", []string{"auth", "login", "password", "token", "credential", "session"}},
	{"asynchronous", []string{"async", "await", "goroutine", "channel", "future", "promise"}},
	{"logging", []string{"log", "logger", "trace", "debug", "warn"}},
	{"configuration", []string{"config", "settings", "options", "env"}},
	{"testing", []string{"test", "mock", "stub", "assert", "fixture"}},
	{"serialization", []string{"marshal", "unmarshal", "serialize", "deserialize", "json", "yaml", "encode", "decode"}},
	{"events", []string{"event", "listener", "subscribe", "publish", "emit", "dispatch"}},
	{"validation", []string{"validate", "validator", "sanitize", "constraint"}},
	{"factory pattern", []string{"factory", "builder", "constructor"}},
	{"collections", []string{"list", "slice", "array", "map", "set", "collection", "queue", "stack"}},
	{"file i/o", []string{"file", "read", "write", "stream", "buffer", "io."}},
	{"initialization", []string{"init", "setup", "bootstrap", "new("}},
	{"crud", []string{"create", "update", "delete", "fetch", "list("}},
}

// keywordTags builds step 8: the union of tags triggered by substring
// matches on name or content, plus scope-based tags.
func keywordTags(n *graph.Node, source string) string {
	name := strings.ToLower(nameOf(n.ID))
	content := strings.ToLower(source)

	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, rule := range patternTable {
		for _, pattern := range rule.patterns {
			if strings.Contains(name, pattern) || strings.Contains(content, pattern) {
				add(rule.tag)
				break
			}
		}
	}

	switch strings.ToLower(n.Metadata.Scope) {
	case "test":
		add("test")
	case "benchmark":
		add("benchmark")
	case "example":
		add("example")
	}

	if len(tags) == 0 {
		return ""
	}
	return "related to: " + strings.Join(tags, ", ")
}
