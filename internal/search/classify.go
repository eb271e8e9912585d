// Package search implements the hybrid semantic/code searcher: query
// classification, dual-collection retrieval, exact-name fallback, and
// Reciprocal Rank Fusion scoring (spec §4.14).
package search

import (
	"regexp"
	"strings"
)

// QueryClass is the coarse shape of a user query, used to pick fusion
// weights.
type QueryClass string

const (
	Question   QueryClass = "question"
	Identifier QueryClass = "identifier"
	Natural    QueryClass = "natural"
)

var questionStarters = map[string]bool{
	"how": true, "what": true, "why": true, "where": true, "when": true,
	"which": true, "who": true, "is": true, "are": true, "can": true,
	"does": true, "do": true,
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Classify assigns a query its QueryClass per spec §4.14.
func Classify(query string) QueryClass {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Natural
	}
	if strings.HasSuffix(trimmed, "?") {
		return Question
	}
	firstToken := strings.ToLower(strings.Fields(trimmed)[0])
	if questionStarters[firstToken] {
		return Question
	}
	if isIdentifierShaped(trimmed) {
		return Identifier
	}
	return Natural
}

// isIdentifierShaped reports condition (a)+(b) of the Identifier rule:
// no whitespace, matches the identifier regex, and exhibits one of
// underscore, dash, an internal lower->upper transition, or an
// uppercase first letter.
func isIdentifierShaped(q string) bool {
	if strings.ContainsAny(q, " \t\n") {
		return false
	}
	if !identifierRe.MatchString(q) {
		return false
	}
	if strings.Contains(q, "_") || strings.Contains(q, "-") {
		return true
	}
	if len(q) > 0 && q[0] >= 'A' && q[0] <= 'Z' {
		return true
	}
	for i := 1; i < len(q); i++ {
		if q[i-1] >= 'a' && q[i-1] <= 'z' && q[i] >= 'A' && q[i] <= 'Z' {
			return true
		}
	}
	return false
}

// Weights are the (semantic, code, agreement_coeff) triple that
// shapes fusion for a query class.
type Weights struct {
	Semantic       float64
	Code           float64
	AgreementCoeff float64
}

var classWeights = map[QueryClass]Weights{
	Identifier: {Semantic: 0.5, Code: 0.5, AgreementCoeff: 0.15},
	Question:   {Semantic: 0.9, Code: 0.1, AgreementCoeff: 0.08},
	Natural:    {Semantic: 0.75, Code: 0.25, AgreementCoeff: 0.12},
}

// WeightsFor returns the fusion weights for class c.
func WeightsFor(c QueryClass) Weights {
	return classWeights[c]
}

// caseVariants returns the lower/upper/PascalCase/camelCase
// transformations of an identifier query, used as a scroll_by_name
// fallback when the exact query has no hits (spec §4.14 step 3).
func caseVariants(q string) []string {
	variants := []string{strings.ToLower(q), strings.ToUpper(q), toPascalCase(q), toCamelCase(q), q}
	seen := make(map[string]bool)
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func toPascalCase(q string) string {
	words := splitWords(q)
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(strings.ToLower(w[1:]))
	}
	return b.String()
}

func toCamelCase(q string) string {
	pascal := toPascalCase(q)
	if pascal == "" {
		return pascal
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}

func splitWords(q string) []string {
	return strings.FieldsFunc(q, func(r rune) bool {
		return r == '_' || r == '-'
	})
}
