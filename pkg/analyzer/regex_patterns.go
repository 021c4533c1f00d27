// Package analyzer - Pre-compiled regex patterns for performance.
//
// All patterns used on the analysis hot path are compiled once at package
// init time. Query analysis runs on every optimizer invocation, so per-call
// regexp.MustCompile would dominate the cost of the analysis itself.
package analyzer

import "regexp"

// =============================================================================
// Pattern Structure (nodes, relationships)
// =============================================================================

var (
	// nodePattern matches node patterns: (n), (n:Label), (:Label {prop: 1})
	nodePattern = regexp.MustCompile(`\(\s*\w*\s*(?::\s*\w+)?\s*(?:\{[^}]*\})?\s*\)`)

	// aliasLabelPattern captures alias→label bindings: (u:User) → u, User
	aliasLabelPattern = regexp.MustCompile(`\(\s*(\w+)\s*:\s*(\w+)`)

	// labelPattern captures every node label, aliased or not: (:User), (u:User)
	labelPattern = regexp.MustCompile(`\(\s*\w*\s*:\s*(\w+)`)

	// relationshipPattern matches relationship arrows: -[:KNOWS]->, <--, -[r]-
	relationshipPattern = regexp.MustCompile(`<?-\s*(?:\[[^\]]*\])?\s*->?`)

	// varLengthPattern matches variable-length expansions: -[*], -[:KNOWS*1..3]-
	varLengthPattern = regexp.MustCompile(`\[\s*\w*\s*(?::\s*\w+)?\s*\*`)
)

// =============================================================================
// Filters and Index Candidates
// =============================================================================

var (
	// equalityFilterPattern captures alias.property = <literal or parameter>
	// inside WHERE clauses: u.email = "x@example.com", n.age = $age
	equalityFilterPattern = regexp.MustCompile(`(\w+)\.(\w+)\s*=\s*(?:\$\w+|'[^']*'|"[^"]*"|[\d.]+|true|false)`)

	// inlinePropertyPattern captures inline map filters: (u:User {email: $e})
	inlinePropertyPattern = regexp.MustCompile(`\(\s*\w*\s*:\s*(\w+)\s*\{([^}]*)\}`)

	// propertyKeyPattern captures keys inside an inline property map.
	propertyKeyPattern = regexp.MustCompile(`(\w+)\s*:`)

	// wherePattern locates the WHERE clause on the original query text.
	// Offsets into an uppercased copy are not safe: some runes grow when
	// uppercased, shifting byte positions.
	wherePattern = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// =============================================================================
// Clauses and Aggregations
// =============================================================================

var (
	// aggregationPattern matches aggregation function calls.
	aggregationPattern = regexp.MustCompile(`(?i)\b(count|collect|sum|avg|min|max|percentileCont|stDev)\s*\(`)

	// limitValuePattern captures the LIMIT row bound.
	limitValuePattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)

	// shortestPathPattern matches path-finding constructs.
	shortestPathPattern = regexp.MustCompile(`(?i)\b(shortestPath|allShortestPaths)\s*\(`)
)
