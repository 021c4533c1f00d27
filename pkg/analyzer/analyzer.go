// Package analyzer extracts structural fingerprints from graph queries.
//
// The fingerprint (QueryAnalysis) drives every downstream optimization
// decision: rewriting, cost estimation, index advice, and cache strategy.
// Analysis is a pure function over the query text plus the caller-supplied
// context - no I/O, no clock reads, no randomness - so identical inputs
// always produce identical analyses.
//
// The analyzer uses keyword and pattern scanning rather than a full parser.
// It may produce FALSE POSITIVES (marking read-only queries as writes) but
// not false negatives. False positives can occur when verbs appear in
// property names or string literals. This is intentionally conservative:
// treating a read as a write costs a cache opportunity, while treating a
// write as a read would serve stale data.
//
// Example:
//
//	a := analyzer.New(1000)
//	analysis := a.Analyze(`MATCH (u:User) WHERE u.email = "x@example.com" RETURN u`, ctx)
//
//	analysis.IsRead          // true
//	analysis.AffectedLabels  // ["User"]
//	analysis.RequiredIndexes // ["User.email"]
package analyzer

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// QueryType identifies the query language of an inbound query.
type QueryType string

const (
	QueryTypeCypher  QueryType = "cypher"
	QueryTypeSQL     QueryType = "sql"
	QueryTypeGremlin QueryType = "gremlin"
)

// Priority expresses caller urgency; advisory only.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Intent classifies what a query is trying to do.
type Intent string

const (
	IntentRead               Intent = "read"
	IntentWrite              Intent = "write"
	IntentPathFinding        Intent = "path_finding"
	IntentNeighborhood       Intent = "neighborhood"
	IntentAggregation        Intent = "aggregation"
	IntentCentrality         Intent = "centrality"
	IntentCommunityDetection Intent = "community_detection"
	IntentPatternMatch       Intent = "pattern_match"
	IntentUnknown            Intent = "unknown"
)

// TraversalStrategy is a suggested traversal approach for the execution layer.
type TraversalStrategy string

const (
	TraversalNone TraversalStrategy = ""
	TraversalBFS  TraversalStrategy = "bfs"
	TraversalDFS  TraversalStrategy = "dfs"
)

// Context carries caller-supplied optimization inputs. Read-only.
type Context struct {
	// TenantID scopes cache keys and invalidation. Required.
	TenantID string

	// QueryType identifies the query language (default: cypher).
	QueryType QueryType

	// Region is an optional deployment region tag.
	Region string

	// Priority expresses caller urgency (default: medium).
	Priority Priority

	// TimeoutMs is advisory; honored by the execution collaborator,
	// not enforced here.
	TimeoutMs int64

	// CacheEnabled overrides cache strategy generation when set.
	// nil means "decide from the analysis".
	CacheEnabled *bool

	// Intent is an optional caller hint that overrides inference.
	Intent Intent

	// Roles and Features are opaque caller attributes, carried for
	// downstream collaborators.
	Roles    []string
	Features []string
}

// CacheAllowed reports whether the context permits caching.
func (c *Context) CacheAllowed() bool {
	return c == nil || c.CacheEnabled == nil || *c.CacheEnabled
}

// QueryAnalysis is the structural fingerprint of a query.
// Immutable once computed; callers must not modify the slices.
type QueryAnalysis struct {
	// Complexity is a heuristic score over the structural counts.
	Complexity int

	// Structural counts
	NodeCount         int
	RelationshipCount int
	FilterCount       int
	AggregationCount  int
	JoinCount         int

	// HasWildcard reports unbounded-result patterns (*, collect(...)).
	HasWildcard bool

	// HasLimit reports an explicit LIMIT clause; LimitValue is its bound
	// (0 when absent).
	HasLimit   bool
	LimitValue int64

	// IsRead and IsWrite are mutually exclusive.
	IsRead  bool
	IsWrite bool

	// AffectedLabels are the node labels touched by the query, sorted.
	AffectedLabels []string

	// RequiredIndexes are "Label.property" candidates derived from
	// equality filters, sorted.
	RequiredIndexes []string

	// Intent is the inferred (or caller-hinted) query intent.
	Intent Intent

	// Traversal is the suggested traversal strategy, if any.
	Traversal TraversalStrategy
}

// Analyzer extracts query fingerprints with memoization.
//
// Analysis is deterministic, so results are memoized on the normalized
// query text (plus the context intent hint, the only context field that
// changes the outcome). The memo is bounded with simple eviction.
type Analyzer struct {
	mu      sync.RWMutex
	memo    map[string]*QueryAnalysis
	maxSize int
}

// New creates an analyzer with a bounded memo (maxSize <= 0 uses 1000).
func New(maxSize int) *Analyzer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Analyzer{
		memo:    make(map[string]*QueryAnalysis),
		maxSize: maxSize,
	}
}

// Analyze extracts the fingerprint for query. Never returns nil: queries
// that cannot be classified yield a degraded analysis (complexity 0,
// read-only) rather than an error.
func (a *Analyzer) Analyze(query string, ctx *Context) *QueryAnalysis {
	key := memoKey(query, ctx)

	a.mu.RLock()
	if cached, ok := a.memo[key]; ok {
		a.mu.RUnlock()
		return cached
	}
	a.mu.RUnlock()

	analysis := analyzeQuery(query, ctx)

	a.mu.Lock()
	if len(a.memo) >= a.maxSize {
		// Drop an arbitrary entry. Not LRU, but cheap and bounded.
		for k := range a.memo {
			delete(a.memo, k)
			break
		}
	}
	a.memo[key] = analysis
	a.mu.Unlock()

	return analysis
}

// ClearMemo discards all memoized analyses.
func (a *Analyzer) ClearMemo() {
	a.mu.Lock()
	a.memo = make(map[string]*QueryAnalysis)
	a.mu.Unlock()
}

// MemoSize returns the current memo entry count.
func (a *Analyzer) MemoSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.memo)
}

func memoKey(query string, ctx *Context) string {
	norm := strings.Join(strings.Fields(query), " ")
	if ctx != nil && ctx.Intent != "" {
		return norm + "\x00" + string(ctx.Intent)
	}
	return norm
}

// Complexity weights. The score is a relative ranking signal, not a budget.
const (
	weightNode        = 2
	weightRel         = 3
	weightFilter      = 1
	weightAggregation = 5
	weightJoin        = 4
	wildcardPenalty   = 10
)

func analyzeQuery(query string, ctx *Context) *QueryAnalysis {
	analysis := &QueryAnalysis{}
	trimmed := strings.TrimSpace(query)
	upper := strings.ToUpper(trimmed)

	// Degraded analysis: unparseable input still yields a usable,
	// read-classified fingerprint.
	if trimmed == "" || !hasRecognizableClause(upper) {
		analysis.IsRead = true
		analysis.Intent = IntentUnknown
		return analysis
	}

	analysis.NodeCount = len(nodePattern.FindAllString(trimmed, -1))
	analysis.RelationshipCount = len(relationshipPattern.FindAllString(trimmed, -1))
	analysis.AggregationCount = len(aggregationPattern.FindAllString(trimmed, -1))
	analysis.FilterCount = countFilters(trimmed, upper)
	analysis.JoinCount = countJoins(trimmed, upper)

	analysis.HasWildcard = strings.Contains(trimmed, "*") ||
		containsKeywordPrefix(upper, "COLLECT(") ||
		strings.Contains(upper, "COLLECT (")

	if m := limitValuePattern.FindStringSubmatch(trimmed); m != nil {
		analysis.HasLimit = true
		analysis.LimitValue = parseInt64(m[1])
	}

	analysis.IsWrite = containsKeyword(upper, "CREATE") ||
		containsKeyword(upper, "MERGE") ||
		containsKeyword(upper, "DELETE") ||
		containsKeyword(upper, "SET") ||
		containsKeyword(upper, "REMOVE") ||
		containsKeyword(upper, "DROP")
	analysis.IsRead = !analysis.IsWrite

	analysis.AffectedLabels = extractLabels(trimmed)
	analysis.RequiredIndexes = extractRequiredIndexes(trimmed)

	analysis.Intent = inferIntent(analysis, trimmed, upper, ctx)
	analysis.Traversal = suggestTraversal(analysis)

	analysis.Complexity = analysis.NodeCount*weightNode +
		analysis.RelationshipCount*weightRel +
		analysis.FilterCount*weightFilter +
		analysis.AggregationCount*weightAggregation +
		analysis.JoinCount*weightJoin
	if analysis.HasWildcard {
		analysis.Complexity += wildcardPenalty
	}

	return analysis
}

// hasRecognizableClause reports whether the query contains at least one
// clause keyword we know how to reason about.
func hasRecognizableClause(upper string) bool {
	for _, kw := range []string{
		"MATCH", "RETURN", "CREATE", "MERGE", "DELETE", "SET",
		"REMOVE", "WITH", "UNWIND", "CALL", "SELECT", "SHOW", "DROP",
	} {
		if containsKeyword(upper, kw) {
			return true
		}
	}
	return false
}

// countFilters counts WHERE predicates (split on AND/OR) plus inline
// property-map filter keys.
func countFilters(query, upper string) int {
	count := 0

	if idx := strings.Index(upper, "WHERE"); idx >= 0 {
		clause := upper[idx+len("WHERE"):]
		// Cut the clause at the next major keyword.
		for _, kw := range []string{"RETURN", "WITH", "ORDER", "LIMIT", "SKIP", "CREATE", "MERGE", "DELETE", "SET"} {
			if end := strings.Index(clause, kw); end >= 0 {
				clause = clause[:end]
			}
		}
		count = 1 + strings.Count(clause, " AND ") + strings.Count(clause, " OR ")
	}

	for _, m := range inlinePropertyPattern.FindAllStringSubmatch(query, -1) {
		count += len(propertyKeyPattern.FindAllString(m[2], -1))
	}
	return count
}

// countJoins approximates join work: additional MATCH clauses and
// variable-length expansions.
func countJoins(query, upper string) int {
	joins := 0
	matches := countKeyword(upper, "MATCH")
	if matches > 1 {
		joins += matches - 1
	}
	joins += len(varLengthPattern.FindAllString(query, -1))
	return joins
}

// extractLabels returns the sorted, deduplicated node labels in the query.
func extractLabels(query string) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, m := range labelPattern.FindAllStringSubmatch(query, -1) {
		if _, ok := seen[m[1]]; !ok {
			seen[m[1]] = struct{}{}
			labels = append(labels, m[1])
		}
	}
	sort.Strings(labels)
	return labels
}

// extractRequiredIndexes derives "Label.property" index candidates from
// equality filters. Alias-qualified predicates (u.email = ...) resolve the
// alias to its label from the MATCH pattern; inline property maps
// ((u:User {email: $e})) contribute directly.
func extractRequiredIndexes(query string) []string {
	aliasToLabel := make(map[string]string)
	for _, m := range aliasLabelPattern.FindAllStringSubmatch(query, -1) {
		aliasToLabel[m[1]] = m[2]
	}

	seen := make(map[string]struct{})
	var indexes []string
	add := func(label, prop string) {
		key := label + "." + prop
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			indexes = append(indexes, key)
		}
	}

	// Equality predicates after WHERE.
	if loc := wherePattern.FindStringIndex(query); loc != nil {
		for _, m := range equalityFilterPattern.FindAllStringSubmatch(query[loc[0]:], -1) {
			if label, ok := aliasToLabel[m[1]]; ok {
				add(label, m[2])
			}
		}
	}

	// Inline property-map filters.
	for _, m := range inlinePropertyPattern.FindAllStringSubmatch(query, -1) {
		label := m[1]
		for _, pk := range propertyKeyPattern.FindAllStringSubmatch(m[2], -1) {
			add(label, pk[1])
		}
	}

	sort.Strings(indexes)
	return indexes
}

func inferIntent(a *QueryAnalysis, query, upper string, ctx *Context) Intent {
	if ctx != nil && ctx.Intent != "" {
		return ctx.Intent
	}
	switch {
	case a.IsWrite:
		return IntentWrite
	case shortestPathPattern.MatchString(query):
		return IntentPathFinding
	case strings.Contains(upper, "PAGERANK") || strings.Contains(upper, "BETWEENNESS") || strings.Contains(upper, "CENTRALITY"):
		return IntentCentrality
	case strings.Contains(upper, "LOUVAIN") || strings.Contains(upper, "COMMUNITY"):
		return IntentCommunityDetection
	case a.AggregationCount > 0:
		return IntentAggregation
	case varLengthPattern.MatchString(query):
		return IntentNeighborhood
	case a.RelationshipCount >= 2:
		return IntentPatternMatch
	default:
		return IntentRead
	}
}

func suggestTraversal(a *QueryAnalysis) TraversalStrategy {
	switch a.Intent {
	case IntentPathFinding, IntentNeighborhood:
		return TraversalBFS
	case IntentPatternMatch:
		return TraversalDFS
	default:
		return TraversalNone
	}
}

// containsKeyword checks if the query contains a keyword as a whole word.
// It searches all occurrences, so "ToDelete" won't block finding "DELETE"
// later in the query.
func containsKeyword(upper, keyword string) bool {
	searchFrom := 0
	for {
		idx := strings.Index(upper[searchFrom:], keyword)
		if idx < 0 {
			return false
		}
		idx += searchFrom

		isWordStart := idx == 0 || (!isAlphaNumericByte(upper[idx-1]) && upper[idx-1] != '_')
		end := idx + len(keyword)
		isWordEnd := end >= len(upper) || (!isAlphaNumericByte(upper[end]) && upper[end] != '_')

		if isWordStart && isWordEnd {
			return true
		}

		searchFrom = idx + 1
		if searchFrom >= len(upper) {
			return false
		}
	}
}

// containsKeywordPrefix is containsKeyword for tokens that end in a
// non-word character (e.g. "COLLECT("): only the start boundary is checked.
func containsKeywordPrefix(upper, keyword string) bool {
	searchFrom := 0
	for {
		idx := strings.Index(upper[searchFrom:], keyword)
		if idx < 0 {
			return false
		}
		idx += searchFrom
		if idx == 0 || (!isAlphaNumericByte(upper[idx-1]) && upper[idx-1] != '_') {
			return true
		}
		searchFrom = idx + 1
		if searchFrom >= len(upper) {
			return false
		}
	}
}

// countKeyword counts whole-word occurrences of keyword.
func countKeyword(upper, keyword string) int {
	count := 0
	searchFrom := 0
	for {
		idx := strings.Index(upper[searchFrom:], keyword)
		if idx < 0 {
			return count
		}
		idx += searchFrom

		isWordStart := idx == 0 || (!isAlphaNumericByte(upper[idx-1]) && upper[idx-1] != '_')
		end := idx + len(keyword)
		isWordEnd := end >= len(upper) || (!isAlphaNumericByte(upper[end]) && upper[end] != '_')
		if isWordStart && isWordEnd {
			count++
		}

		searchFrom = idx + len(keyword)
		if searchFrom >= len(upper) {
			return count
		}
	}
}

func isAlphaNumericByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// parseInt64 parses a digit string, saturating at MaxInt64 on overflow
// so absurd LIMIT values never wrap negative.
func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}
