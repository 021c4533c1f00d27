// Package plan defines the query plan produced by the optimizer: the
// transient decision record for one optimize() call.
//
// A QueryPlan is created fresh on every optimization, never persisted and
// never mutated after construction. It records what was decided (rewritten
// query, cost estimate, cache strategy, applied rules) so callers can
// execute, audit, or display the decision.
package plan

import (
	"time"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
)

// RuleCategory classifies an optimization rule.
type RuleCategory string

const (
	CategoryIndexHint             RuleCategory = "index_hint"
	CategoryQueryRewrite          RuleCategory = "query_rewrite"
	CategoryParameterTuning       RuleCategory = "parameter_tuning"
	CategoryCacheStrategy         RuleCategory = "cache_strategy"
	CategoryTraversalOptimization RuleCategory = "traversal_optimization"
)

// Impact grades how much a rule is expected to matter.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Well-known rule names.
const (
	RuleAddLimit       = "add_limit"
	RuleUseIndexHint   = "use_index_hint"
	RuleMissingIndexes = "missing_indexes"

	// RuleIndexesOK is the advisor's "no action needed" sentinel. Callers
	// filter on RuleMissingIndexes, so the all-good case still returns a
	// consistently named rule instead of nil.
	RuleIndexesOK = "indexes_ok"
)

// OptimizationRule records one optimization decision. Immutable once emitted.
type OptimizationRule struct {
	Name        string       `json:"name"`
	Category    RuleCategory `json:"category"`
	Description string       `json:"description"`
	Impact      Impact       `json:"impact"`
	Applied     bool         `json:"applied"`
	Reason      string       `json:"reason,omitempty"`
}

// ExecutionHint is advisory guidance for the execution collaborator.
type ExecutionHint struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// CacheStrategy describes whether and how a query result should be cached.
//
// Invariant: when Enabled is false, TTL is zero and InvalidationRules is
// empty - the canonical "do not cache" value for write queries or when
// caching is disabled by context.
type CacheStrategy struct {
	Enabled bool `json:"enabled"`

	// TTL is the cache entry lifetime (seconds granularity on the wire).
	TTL time.Duration `json:"ttl"`

	// KeyPattern is the key template (not a concrete key), embedding the
	// cache prefix, tenant, and query type.
	KeyPattern string `json:"keyPattern"`

	// InvalidationRules are glob-like label patterns ("User:*") derived
	// from the affected labels.
	InvalidationRules []string `json:"invalidationRules"`

	// PartitionKeys always includes the tenant ID.
	PartitionKeys []string `json:"partitionKeys,omitempty"`

	// StaleWhileRevalidate marks entries that may be served stale while a
	// background refresh runs (refresh execution is out of scope here).
	StaleWhileRevalidate bool `json:"staleWhileRevalidate,omitempty"`
}

// DisabledCacheStrategy returns the canonical do-not-cache sentinel.
func DisabledCacheStrategy() CacheStrategy {
	return CacheStrategy{Enabled: false, TTL: 0, KeyPattern: "", InvalidationRules: []string{}}
}

// CostEstimate is the heuristic cost/row estimate for a plan.
// A relative ranking signal, not an execution budget.
type CostEstimate struct {
	Cost float64 `json:"cost"`
	Rows int64   `json:"rows"`
}

// QueryPlan is the aggregate decision record for one optimization.
type QueryPlan struct {
	// ID uniquely identifies this plan instance (for logs and tracing).
	ID string `json:"id"`

	// OriginalQuery is the caller's query, verbatim, for audit.
	OriginalQuery string `json:"originalQuery"`

	// OptimizedQuery is the rewritten query to execute.
	OptimizedQuery string `json:"optimizedQuery"`

	// Indexes are the required index names, sorted and deduplicated.
	Indexes []string `json:"indexes"`

	EstimatedCost float64 `json:"estimatedCost"`
	EstimatedRows int64   `json:"estimatedRows"`

	// Optimizations lists every rule that was applied or recommended.
	Optimizations []OptimizationRule `json:"optimizations"`

	// Cache is the caching decision for this query (nil = not evaluated).
	Cache *CacheStrategy `json:"cacheStrategy,omitempty"`

	Hints []ExecutionHint `json:"hints,omitempty"`

	Traversal analyzer.TraversalStrategy `json:"traversal,omitempty"`
}

// AppliedRules returns only the rules that were actually applied.
func (p *QueryPlan) AppliedRules() []OptimizationRule {
	var out []OptimizationRule
	for _, r := range p.Optimizations {
		if r.Applied {
			out = append(out, r)
		}
	}
	return out
}

// HasRule reports whether a rule with the given name is on the plan.
func (p *QueryPlan) HasRule(name string) bool {
	for _, r := range p.Optimizations {
		if r.Name == name {
			return true
		}
	}
	return false
}
