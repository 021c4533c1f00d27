package optimizer

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/cache"
	"github.com/strand-analytics/graphopt/pkg/convert"
	"github.com/strand-analytics/graphopt/pkg/plan"
)

// ExecuteFunc runs a query against the actual database. Supplied by the
// caller; the optimizer never talks to a database itself.
type ExecuteFunc func(ctx context.Context, query string, params map[string]interface{}) (interface{}, error)

// Config wires an Optimizer's collaborators.
type Config struct {
	// Cache is required.
	Cache *cache.Cache

	// Advisor is optional. When nil, index recommendations are skipped.
	Advisor *Advisor

	// Rewriter configures the rewrite rules. Zero value enables defaults.
	Rewriter RewriterConfig

	// Weights configures the cost heuristic. Zero value uses defaults.
	Weights CostWeights

	// AnalyzerMemoSize bounds the analyzer's memoization table.
	// Zero uses the analyzer default.
	AnalyzerMemoSize int

	// Logger defaults to a discard logger.
	Logger *logrus.Logger

	// Tracer defaults to a noop tracer.
	Tracer trace.Tracer

	// QueryLog includes the optimized query text in the per-plan debug log.
	QueryLog bool

	// SlowQueryThreshold, when positive, logs a warning for live
	// executions that take longer.
	SlowQueryThreshold time.Duration
}

// Optimizer is the pipeline entry point. It composes the analyzer,
// rewriter, estimator, advisor, and cache into a single read path.
//
// Thread Safety: safe for concurrent use. Each call builds a fresh
// QueryPlan; nothing is shared between invocations except the
// analyzer memo and the cache.
type Optimizer struct {
	analyzer  *analyzer.Analyzer
	rewriter  *Rewriter
	estimator *Estimator
	advisor   *Advisor
	cache     *cache.Cache
	log       *logrus.Logger
	tracer    trace.Tracer
	queryLog  bool
	slowAfter time.Duration
}

// New creates an Optimizer. cfg.Cache must be non-nil.
func New(cfg Config) *Optimizer {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("graphopt")
	}
	if cfg.Rewriter == (RewriterConfig{}) {
		cfg.Rewriter = DefaultRewriterConfig()
	}
	return &Optimizer{
		analyzer:  analyzer.New(cfg.AnalyzerMemoSize),
		rewriter:  NewRewriter(cfg.Rewriter),
		estimator: NewEstimator(cfg.Weights),
		advisor:   cfg.Advisor,
		cache:     cfg.Cache,
		log:       log,
		tracer:    tracer,
		queryLog:  cfg.QueryLog,
		slowAfter: cfg.SlowQueryThreshold,
	}
}

// Optimize runs the full planning pipeline and returns the plan.
//
// Pure composition: no I/O happens here. The original query string is
// preserved verbatim on the plan; only OptimizedQuery reflects rewrites.
func (o *Optimizer) Optimize(ctx context.Context, query string, octx *analyzer.Context) *plan.QueryPlan {
	_, span := o.tracer.Start(ctx, "optimizer.optimize")
	defer span.End()

	a := o.analyzer.Analyze(query, octx)
	rw := o.rewriter.Rewrite(query, a)
	est := o.estimator.Estimate(a)

	// The analysis is memoized and shared between invocations; the plan
	// gets its own copy of the slice so callers can mutate plans freely.
	indexes := make([]string, len(a.RequiredIndexes))
	copy(indexes, a.RequiredIndexes)

	p := &plan.QueryPlan{
		ID:             uuid.NewString(),
		OriginalQuery:  query,
		OptimizedQuery: rw.OptimizedQuery,
		Indexes:        indexes,
		EstimatedCost:  est.Cost,
		EstimatedRows:  est.Rows,
		Optimizations:  rw.Optimizations,
		Hints:          rw.Hints,
		Traversal:      a.Traversal,
	}

	if o.advisor != nil {
		rule := o.advisor.Recommend(a.RequiredIndexes)
		// The all-good sentinel stays off the plan.
		if rule.Name == plan.RuleMissingIndexes {
			p.Optimizations = append(p.Optimizations, rule)
		}
	}

	strategy := o.cache.GenerateStrategy(a, octx)
	p.Cache = &strategy

	if octx != nil && octx.Priority == analyzer.PriorityHigh {
		p.Hints = append(p.Hints, plan.ExecutionHint{
			Kind:   "priority",
			Detail: "schedule ahead of lower-priority work",
		})
	}

	span.SetAttributes(
		attribute.String("plan.id", p.ID),
		attribute.Float64("plan.cost", p.EstimatedCost),
		attribute.Bool("plan.cacheable", strategy.Enabled),
	)

	fields := logrus.Fields{
		"plan":      p.ID,
		"cost":      p.EstimatedCost,
		"rows":      p.EstimatedRows,
		"cacheable": strategy.Enabled,
		"rules":     len(p.Optimizations),
	}
	if o.queryLog {
		fields["query"] = p.OptimizedQuery
	}
	o.log.WithFields(fields).Debug("query optimized")

	return p
}

// ExecuteCached serves a query through the cache when the plan allows
// it, falling back to execFn on a miss. Cache reads and writes are
// best-effort; execFn errors propagate to the caller unmodified.
//
// Cache writes happen on a detached goroutine so the caller never
// waits on cache I/O; write failures surface only in the logs.
func (o *Optimizer) ExecuteCached(ctx context.Context, query string, params map[string]interface{}, octx *analyzer.Context, execFn ExecuteFunc) (interface{}, *plan.QueryPlan, error) {
	ctx, span := o.tracer.Start(ctx, "optimizer.execute_cached")
	defer span.End()

	p := o.Optimize(ctx, query, octx)

	cacheable := p.Cache != nil && p.Cache.Enabled
	var key string
	if cacheable {
		key = o.cache.GenerateKey(p.OptimizedQuery, params, octx)
		if value, ok := o.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return value, p, nil
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))
	}

	start := time.Now()
	result, err := execFn(ctx, p.OptimizedQuery, params)
	if err != nil {
		return nil, p, err
	}
	if elapsed := time.Since(start); o.slowAfter > 0 && elapsed > o.slowAfter {
		o.log.WithFields(logrus.Fields{
			"plan":    p.ID,
			"elapsed": elapsed,
		}).Warn("slow query execution")
	}

	normalized := convert.NormalizeValue(result)

	if cacheable {
		ttl := p.Cache.TTL
		// Detached write: the entry lands (or not) after we return.
		writeCtx := context.WithoutCancel(ctx)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					o.log.WithField("panic", r).Error("cache write panicked")
				}
			}()
			o.cache.Set(writeCtx, key, normalized, ttl)
		}()
	}

	return normalized, p, nil
}

// Invalidate evicts every cached result for a tenant. Labels are
// recorded for observability; eviction is tenant-wide regardless.
// Returns the number of evicted entries.
func (o *Optimizer) Invalidate(ctx context.Context, tenantID string, labels []string) int {
	return o.cache.Invalidate(ctx, tenantID, labels)
}

// CacheStats exposes the underlying cache hit/miss counters.
func (o *Optimizer) CacheStats() cache.Stats {
	return o.cache.Stats()
}
