// Package optimizer composes query analysis, rewriting, cost estimation,
// index advice, and the result cache into a single optimization pipeline.
//
// The pipeline is pure composition: Optimize performs no I/O, and
// ExecuteCached only touches the cache store and the caller-supplied
// execution function. All sub-components are deterministic over their
// inputs and safe for concurrent use.
package optimizer

import (
	"fmt"
	"strings"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/plan"
)

// DefaultRowLimit is the bound injected into unbounded wildcard queries.
const DefaultRowLimit = 1000

// RewriterConfig toggles individual rewrite rules. Every rule can be
// switched off independently; a disabled rule is simply never applied and
// never logged.
type RewriterConfig struct {
	// AddLimit injects a LIMIT clause into unbounded wildcard queries.
	AddLimit bool

	// RowLimit is the injected bound (<= 0 uses DefaultRowLimit).
	RowLimit int64

	// IndexHints attaches index-seek execution hints for equality-filter
	// index candidates. The query text is never modified by this rule.
	IndexHints bool
}

// DefaultRewriterConfig enables all rules with the canonical row limit.
func DefaultRewriterConfig() RewriterConfig {
	return RewriterConfig{AddLimit: true, RowLimit: DefaultRowLimit, IndexHints: true}
}

// RewriteResult is the outcome of one rewrite pass.
type RewriteResult struct {
	// OptimizedQuery is the (possibly) transformed query text. It stays
	// syntactically valid in the input's query language, and semantics
	// are only narrowed for degenerate (unbounded) queries.
	OptimizedQuery string

	// Optimizations logs every rule that fired. A rule is never applied
	// silently.
	Optimizations []plan.OptimizationRule

	// Hints carries advisory execution hints produced by rewrite rules.
	Hints []plan.ExecutionHint
}

// Rewriter applies transformation rules to analyzed queries.
type Rewriter struct {
	cfg RewriterConfig
}

// NewRewriter creates a rewriter with the given rule configuration.
func NewRewriter(cfg RewriterConfig) *Rewriter {
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	return &Rewriter{cfg: cfg}
}

// Rewrite applies the enabled rules to query.
//
// Queries that already bound their result set are left untouched: the
// rewriter must not alter result sets for non-degenerate queries.
func (r *Rewriter) Rewrite(query string, a *analyzer.QueryAnalysis) RewriteResult {
	result := RewriteResult{OptimizedQuery: query}

	// Reads only: a write query's * (e.g. a variable-length pattern in a
	// DELETE) must never gain a LIMIT, which would be invalid after the
	// write clause.
	if r.cfg.AddLimit && a.IsRead && a.HasWildcard && !a.HasLimit {
		result.OptimizedQuery = appendLimit(query, r.cfg.RowLimit)
		result.Optimizations = append(result.Optimizations, plan.OptimizationRule{
			Name:        plan.RuleAddLimit,
			Category:    plan.CategoryQueryRewrite,
			Description: fmt.Sprintf("Added LIMIT %d to unbounded wildcard query", r.cfg.RowLimit),
			Impact:      plan.ImpactMedium,
			Applied:     true,
		})
	}

	if r.cfg.IndexHints && len(a.RequiredIndexes) > 0 {
		for _, idx := range a.RequiredIndexes {
			result.Hints = append(result.Hints, plan.ExecutionHint{
				Kind:   "index_seek",
				Detail: "USING INDEX " + idx,
			})
		}
		result.Optimizations = append(result.Optimizations, plan.OptimizationRule{
			Name:        plan.RuleUseIndexHint,
			Category:    plan.CategoryIndexHint,
			Description: "Attached index-seek hints for equality filters",
			Impact:      plan.ImpactLow,
			Applied:     true,
			Reason:      strings.Join(a.RequiredIndexes, ", "),
		})
	}

	return result
}

// appendLimit appends a LIMIT clause, keeping any trailing semicolon valid.
func appendLimit(query string, limit int64) string {
	trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}
