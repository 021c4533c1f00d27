package optimizer

import (
	"strings"
	"testing"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/plan"
)

func analyze(t *testing.T, query string) *analyzer.QueryAnalysis {
	t.Helper()
	return analyzer.New(0).Analyze(query, nil)
}

func TestRewriteAddsLimitToUnboundedWildcard(t *testing.T) {
	r := NewRewriter(DefaultRewriterConfig())
	query := "MATCH (n:User) RETURN *"
	res := r.Rewrite(query, analyze(t, query))

	if !strings.HasSuffix(res.OptimizedQuery, " LIMIT 1000") {
		t.Errorf("expected LIMIT 1000 suffix, got %q", res.OptimizedQuery)
	}
	if len(res.Optimizations) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(res.Optimizations))
	}
	rule := res.Optimizations[0]
	if rule.Name != plan.RuleAddLimit || !rule.Applied || rule.Impact != plan.ImpactMedium {
		t.Errorf("unexpected rule: %+v", rule)
	}
}

func TestRewriteLeavesBoundedQueryAlone(t *testing.T) {
	r := NewRewriter(DefaultRewriterConfig())
	query := "MATCH (n:User) RETURN * LIMIT 50"
	res := r.Rewrite(query, analyze(t, query))

	if res.OptimizedQuery != query {
		t.Errorf("bounded query was modified: %q", res.OptimizedQuery)
	}
	for _, rule := range res.Optimizations {
		if rule.Name == plan.RuleAddLimit {
			t.Error("add_limit emitted for bounded query")
		}
	}
}

func TestRewriteLeavesNonWildcardQueryAlone(t *testing.T) {
	r := NewRewriter(DefaultRewriterConfig())
	query := "MATCH (n:User) RETURN n.name"
	res := r.Rewrite(query, analyze(t, query))

	if res.OptimizedQuery != query {
		t.Errorf("non-wildcard query was modified: %q", res.OptimizedQuery)
	}
}

func TestRewriteNeverLimitsWrites(t *testing.T) {
	r := NewRewriter(DefaultRewriterConfig())

	// A variable-length pattern's * marks the analysis as wildcard, but a
	// LIMIT after a write clause is invalid Cypher.
	queries := []string{
		"MATCH (a)-[r*1..3]->(b) DETACH DELETE r",
		"MATCH (n:User) SET n.flags = '*'",
	}
	for _, query := range queries {
		res := r.Rewrite(query, analyze(t, query))
		if res.OptimizedQuery != query {
			t.Errorf("write query was modified: %q", res.OptimizedQuery)
		}
		for _, rule := range res.Optimizations {
			if rule.Name == plan.RuleAddLimit {
				t.Errorf("add_limit emitted for write %q", query)
			}
		}
	}
}

func TestRewriteStripsTrailingSemicolon(t *testing.T) {
	r := NewRewriter(DefaultRewriterConfig())
	query := "MATCH (n:User) RETURN *;"
	res := r.Rewrite(query, analyze(t, query))

	if res.OptimizedQuery != "MATCH (n:User) RETURN * LIMIT 1000" {
		t.Errorf("got %q", res.OptimizedQuery)
	}
}

func TestRewriteCustomRowLimit(t *testing.T) {
	r := NewRewriter(RewriterConfig{AddLimit: true, RowLimit: 250})
	query := "MATCH (n:User) RETURN *"
	res := r.Rewrite(query, analyze(t, query))

	if !strings.HasSuffix(res.OptimizedQuery, " LIMIT 250") {
		t.Errorf("got %q", res.OptimizedQuery)
	}
}

func TestRewriteRulesToggleIndependently(t *testing.T) {
	query := "MATCH (u:User) WHERE u.email = $email RETURN *"
	a := analyze(t, query)

	limitOnly := NewRewriter(RewriterConfig{AddLimit: true}).Rewrite(query, a)
	if len(limitOnly.Hints) != 0 {
		t.Errorf("hints emitted with IndexHints disabled: %+v", limitOnly.Hints)
	}
	if !limitOnly.Optimizations[0].Applied {
		t.Error("add_limit not applied")
	}

	hintsOnly := NewRewriter(RewriterConfig{IndexHints: true}).Rewrite(query, a)
	if hintsOnly.OptimizedQuery != query {
		t.Errorf("query modified with AddLimit disabled: %q", hintsOnly.OptimizedQuery)
	}
	if len(hintsOnly.Hints) == 0 {
		t.Fatal("expected index hints")
	}
	if hintsOnly.Hints[0].Kind != "index_seek" {
		t.Errorf("unexpected hint kind %q", hintsOnly.Hints[0].Kind)
	}
}

func TestRewriteIndexHintRuleNamesIndexes(t *testing.T) {
	r := NewRewriter(DefaultRewriterConfig())
	query := "MATCH (u:User) WHERE u.email = $email RETURN u LIMIT 10"
	res := r.Rewrite(query, analyze(t, query))

	var found bool
	for _, rule := range res.Optimizations {
		if rule.Name == plan.RuleUseIndexHint {
			found = true
			if !strings.Contains(rule.Reason, "User.email") {
				t.Errorf("reason missing index name: %q", rule.Reason)
			}
		}
	}
	if !found {
		t.Error("use_index_hint rule not emitted")
	}
}
