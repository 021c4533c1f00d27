package optimizer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/cache"
	"github.com/strand-analytics/graphopt/pkg/plan"
	"github.com/strand-analytics/graphopt/pkg/store"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestOptimizer(t *testing.T, st store.Store, cfg Config) *Optimizer {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New(st, cache.Config{Logger: quietLogger()})
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	return New(cfg)
}

func readContext(tenant string) *analyzer.Context {
	return &analyzer.Context{TenantID: tenant, QueryType: analyzer.QueryTypeCypher}
}

func TestOptimizeUnboundedCollectQuery(t *testing.T) {
	o := newTestOptimizer(t, nil, Config{})
	query := "MATCH (n:Document) RETURN *"

	p := o.Optimize(context.Background(), query, readContext("acme"))

	assert.Equal(t, query, p.OriginalQuery, "original query must be preserved verbatim")
	assert.True(t, strings.HasSuffix(p.OptimizedQuery, " LIMIT 1000"))
	assert.True(t, p.HasRule(plan.RuleAddLimit))

	for _, r := range p.AppliedRules() {
		if r.Name == plan.RuleAddLimit {
			assert.Equal(t, plan.ImpactMedium, r.Impact)
		}
	}
	assert.NotEmpty(t, p.ID)
}

func TestOptimizeRequiredIndexesAndAdvice(t *testing.T) {
	adv := NewAdvisor()
	o := newTestOptimizer(t, nil, Config{Advisor: adv})
	query := "MATCH (u:User) WHERE u.email = $email RETURN u LIMIT 10"

	p := o.Optimize(context.Background(), query, readContext("acme"))
	require.Contains(t, p.Indexes, "User.email")
	require.True(t, p.HasRule(plan.RuleMissingIndexes))
	assert.False(t, p.HasRule(plan.RuleIndexesOK), "all-good sentinel must stay off the plan")

	// Once the index exists the plan carries no index advice at all.
	adv.RegisterIndex("User.email")
	satisfied := o.Optimize(context.Background(), query, readContext("acme"))
	assert.False(t, satisfied.HasRule(plan.RuleMissingIndexes))
	assert.False(t, satisfied.HasRule(plan.RuleIndexesOK))
}

func TestOptimizeMemoizedPlansAreIndependent(t *testing.T) {
	o := newTestOptimizer(t, nil, Config{})
	query := "MATCH (u:User) WHERE u.email = $email RETURN u LIMIT 10"

	first := o.Optimize(context.Background(), query, readContext("acme"))
	require.Equal(t, []string{"User.email"}, first.Indexes)

	// Mutating one plan must not leak into later plans built from the
	// same memoized analysis.
	first.Indexes[0] = "mangled"

	second := o.Optimize(context.Background(), query, readContext("acme"))
	assert.Equal(t, []string{"User.email"}, second.Indexes)
}

func TestOptimizeCacheStrategyOnPlan(t *testing.T) {
	o := newTestOptimizer(t, nil, Config{})

	read := o.Optimize(context.Background(), "MATCH (n:User) RETURN n LIMIT 5", readContext("acme"))
	require.NotNil(t, read.Cache)
	assert.True(t, read.Cache.Enabled)

	write := o.Optimize(context.Background(), "CREATE (n:User {name: $name})", readContext("acme"))
	require.NotNil(t, write.Cache)
	assert.False(t, write.Cache.Enabled)
	assert.Zero(t, write.Cache.TTL)
}

func TestOptimizeHighPriorityHint(t *testing.T) {
	o := newTestOptimizer(t, nil, Config{})
	octx := readContext("acme")
	octx.Priority = analyzer.PriorityHigh

	p := o.Optimize(context.Background(), "MATCH (n:User) RETURN n LIMIT 5", octx)
	var found bool
	for _, h := range p.Hints {
		if h.Kind == "priority" {
			found = true
		}
	}
	assert.True(t, found, "high priority context should add an execution hint")
}

// Cache writes are fire-and-forget, so tests poll for the entry to land.
func waitForLen(t *testing.T, st *store.MemoryStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st.Len() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store never reached %d entries", want)
}

func TestExecuteCachedServesSecondCallFromCache(t *testing.T) {
	st := store.NewMemoryStore()
	o := newTestOptimizer(t, st, Config{})
	octx := readContext("acme")
	query := "MATCH (u:User) RETURN u.name LIMIT 10"
	params := map[string]interface{}{"min": 5}

	var calls int64
	execFn := func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return []interface{}{map[string]interface{}{"name": "ada", "age": int64(38)}}, nil
	}

	first, p1, err := o.ExecuteCached(context.Background(), query, params, octx, execFn)
	require.NoError(t, err)
	require.True(t, p1.Cache.Enabled)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))

	waitForLen(t, st, 1)

	second, _, err := o.ExecuteCached(context.Background(), query, params, octx, execFn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "second call must not hit the database")
	assert.Equal(t, first, second)

	stats := o.CacheStats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestExecuteCachedNormalizesResults(t *testing.T) {
	o := newTestOptimizer(t, nil, Config{})

	result, _, err := o.ExecuteCached(context.Background(),
		"MATCH (u:User) RETURN u LIMIT 1",
		nil, readContext("acme"),
		func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"count": int(7)}, nil
		})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(7), m["count"])
}

func TestExecuteCachedPropagatesExecErrors(t *testing.T) {
	st := store.NewMemoryStore()
	o := newTestOptimizer(t, st, Config{})
	sentinel := errors.New("connection refused")

	result, _, err := o.ExecuteCached(context.Background(),
		"MATCH (u:User) RETURN u LIMIT 1",
		nil, readContext("acme"),
		func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
			return nil, sentinel
		})
	require.ErrorIs(t, err, sentinel, "execution errors must reach the caller unmodified")
	assert.Nil(t, result)
	assert.Zero(t, st.Len(), "failed executions must not be cached")
}

func TestExecuteCachedSkipsCacheForWrites(t *testing.T) {
	st := store.NewMemoryStore()
	o := newTestOptimizer(t, st, Config{})

	var calls int64
	execFn := func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return "ok", nil
	}

	for i := 0; i < 2; i++ {
		_, p, err := o.ExecuteCached(context.Background(),
			"CREATE (n:User {name: $name})", nil, readContext("acme"), execFn)
		require.NoError(t, err)
		assert.False(t, p.Cache.Enabled)
	}
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
	assert.Zero(t, st.Len())
}

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("store down")
}
func (brokenStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return 0, errors.New("store down")
}
func (brokenStore) Close() error { return nil }

func TestExecuteCachedFailsSoftOnStoreErrors(t *testing.T) {
	o := newTestOptimizer(t, nil, Config{
		Cache: cache.New(brokenStore{}, cache.Config{Logger: quietLogger()}),
	})

	result, _, err := o.ExecuteCached(context.Background(),
		"MATCH (u:User) RETURN u.name LIMIT 10",
		nil, readContext("acme"),
		func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
			return "live result", nil
		})
	require.NoError(t, err, "store failures must never surface to the caller")
	assert.Equal(t, "live result", result)
}

// Concurrent misses for the same key each execute the query: there is no
// request coalescing. Losing the race costs duplicate work, never
// correctness, since every execution writes the same normalized value.
func TestExecuteCachedConcurrentMissesAllExecute(t *testing.T) {
	st := store.NewMemoryStore()
	o := newTestOptimizer(t, st, Config{})
	octx := readContext("acme")
	query := "MATCH (u:User) RETURN u.name LIMIT 10"

	const workers = 4
	var calls int64
	start := make(chan struct{})
	execFn := func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
		<-start
		atomic.AddInt64(&calls, 1)
		return "result", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := o.ExecuteCached(context.Background(), query, nil, octx, execFn)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	assert.EqualValues(t, workers, atomic.LoadInt64(&calls))
}

func debugLogger(buf *bytes.Buffer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.DebugLevel)
	return log
}

func TestOptimizeQueryLogIncludesQueryText(t *testing.T) {
	query := "MATCH (n:Secret) RETURN n LIMIT 5"

	var buf bytes.Buffer
	o := newTestOptimizer(t, nil, Config{Logger: debugLogger(&buf), QueryLog: true})
	o.Optimize(context.Background(), query, readContext("acme"))
	assert.Contains(t, buf.String(), "MATCH (n:Secret)")

	// Query text stays out of the log unless explicitly opted in.
	var quiet bytes.Buffer
	o2 := newTestOptimizer(t, nil, Config{Logger: debugLogger(&quiet)})
	o2.Optimize(context.Background(), query, readContext("acme"))
	assert.NotContains(t, quiet.String(), "MATCH (n:Secret)")
}

func TestExecuteCachedWarnsOnSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	o := newTestOptimizer(t, nil, Config{Logger: log, SlowQueryThreshold: time.Millisecond})

	_, _, err := o.ExecuteCached(context.Background(),
		"MATCH (u:User) RETURN u LIMIT 1",
		nil, readContext("acme"),
		func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
			time.Sleep(10 * time.Millisecond)
			return "slow", nil
		})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow query execution")
}

func TestInvalidateEvictsTenant(t *testing.T) {
	st := store.NewMemoryStore()
	o := newTestOptimizer(t, st, Config{})
	execFn := func(ctx context.Context, q string, p map[string]interface{}) (interface{}, error) {
		return "result", nil
	}
	query := "MATCH (u:User) RETURN u.name LIMIT 10"

	_, _, err := o.ExecuteCached(context.Background(), query, nil, readContext("acme"), execFn)
	require.NoError(t, err)
	_, _, err = o.ExecuteCached(context.Background(), query, nil, readContext("globex"), execFn)
	require.NoError(t, err)
	waitForLen(t, st, 2)

	evicted := o.Invalidate(context.Background(), "acme", []string{"User"})
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, st.Len())
}
