// Package cache provides the adaptive, tenant-scoped query result cache.
//
// The cache sits over a pluggable key-value store (see pkg/store) and owns
// three concerns:
//
//   - Strategy: deciding whether a query result is cacheable and for how
//     long, from the query's structural fingerprint. Write queries and
//     context-disabled callers get the canonical disabled strategy.
//   - Keys: deterministic, tenant-scoped keys of the form
//     {prefix}:{tenantId}:{sha256(query + canonical_json(params))}.
//   - Invalidation: tenant-wide eviction. Per-label invalidation rules are
//     computed and carried on the strategy, but eviction is deliberately
//     coarse - it may evict more than necessary, never less.
//
// Caching is best-effort: store failures are logged as warnings and
// surfaced as misses (reads) or dropped (writes). They never propagate.
//
// TTL tiers (adaptive on query complexity):
//
//	complexity > 50 -> 1 hour
//	complexity > 10 -> 30 minutes
//	otherwise       -> 5 minutes
//	aggregations    -> floor of 10 minutes (results change less often)
//
// Example:
//
//	c := cache.New(store.NewMemoryStore(), cache.Config{})
//
//	strategy := c.GenerateStrategy(analysis, octx)
//	if strategy.Enabled {
//		key := c.GenerateKey(query, params, octx)
//		if v, ok := c.Get(ctx, key); ok {
//			return v
//		}
//	}
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/encryption"
	"github.com/strand-analytics/graphopt/pkg/plan"
	"github.com/strand-analytics/graphopt/pkg/store"
)

// DefaultPrefix is the cache key namespace.
const DefaultPrefix = "graph:query_result"

// TTL tiers.
const (
	TTLShort  = 5 * time.Minute
	TTLMedium = 30 * time.Minute
	TTLLong   = time.Hour

	// TTLAggregationFloor is the minimum TTL for aggregation results.
	TTLAggregationFloor = 10 * time.Minute

	complexityLongThreshold   = 50
	complexityMediumThreshold = 10
)

// Config configures a Cache.
type Config struct {
	// Prefix namespaces all keys (default: DefaultPrefix).
	Prefix string

	// Encryptor, when set, seals stored values (at-rest encryption).
	Encryptor *encryption.Encryptor

	// Logger receives warnings for fail-soft store errors
	// (default: logrus standard logger).
	Logger *logrus.Logger
}

// Cache is the adaptive query result cache.
// Thread-safe; one instance is shared across requests.
type Cache struct {
	store  store.Store
	codec  *Codec
	log    *logrus.Logger
	prefix string

	hits   uint64
	misses uint64
}

// New creates a Cache over the given store.
func New(st store.Store, cfg Config) *Cache {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Cache{
		store:  st,
		codec:  NewCodec(cfg.Encryptor),
		log:    cfg.Logger,
		prefix: cfg.Prefix,
	}
}

// GenerateStrategy computes the caching decision for an analyzed query.
//
// Returns the disabled sentinel when the analysis is a write or the context
// disables caching. Deterministic: identical analysis+context always yield
// an identical strategy.
func (c *Cache) GenerateStrategy(a *analyzer.QueryAnalysis, octx *analyzer.Context) plan.CacheStrategy {
	if a == nil || a.IsWrite || !octx.CacheAllowed() {
		return plan.DisabledCacheStrategy()
	}

	ttl := TTLShort
	switch {
	case a.Complexity > complexityLongThreshold:
		ttl = TTLLong
	case a.Complexity > complexityMediumThreshold:
		ttl = TTLMedium
	}
	if a.AggregationCount > 0 && ttl < TTLAggregationFloor {
		ttl = TTLAggregationFloor
	}

	queryType := analyzer.QueryTypeCypher
	tenantID := ""
	region := ""
	if octx != nil {
		if octx.QueryType != "" {
			queryType = octx.QueryType
		}
		tenantID = octx.TenantID
		region = octx.Region
	}

	rules := make([]string, 0, len(a.AffectedLabels))
	for _, label := range a.AffectedLabels {
		rules = append(rules, label+":*")
	}

	partitions := []string{tenantID}
	if region != "" {
		partitions = append(partitions, region)
	}

	return plan.CacheStrategy{
		Enabled:           true,
		TTL:               ttl,
		KeyPattern:        c.prefix + ":" + tenantID + ":{" + string(queryType) + ":sha256}",
		InvalidationRules: rules,
		PartitionKeys:     partitions,
		// Aggregations tolerate staleness; serving stale while a refresh
		// runs is acceptable for them.
		StaleWhileRevalidate: a.AggregationCount > 0,
	}
}

// GenerateKey computes the concrete cache key for (query, params, tenant):
// {prefix}:{tenantId}:{sha256hex(query + canonical_json(params))}.
//
// Params are serialized with encoding/json, which emits map keys in sorted
// order, so semantically identical parameter maps hash identically
// regardless of insertion order.
func (c *Cache) GenerateKey(query string, params map[string]interface{}, octx *analyzer.Context) string {
	tenantID := ""
	if octx != nil {
		tenantID = octx.TenantID
	}

	serialized, err := json.Marshal(params)
	if err != nil {
		// Unserializable params cannot be part of a stable key; fall back
		// to the query text alone.
		serialized = nil
	}

	sum := sha256.Sum256(append([]byte(query), serialized...))
	return c.prefix + ":" + tenantID + ":" + hex.EncodeToString(sum[:])
}

// Get looks up a cached value. Returns (value, true) on a hit.
//
// Store and decode failures are logged and reported as misses - cache
// failures must never propagate as fatal errors.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.WithError(err).WithField("key", key).Warn("cache get failed")
		}
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	value, err := c.codec.Decode(data)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache decode failed")
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&c.hits, 1)
	return value, true
}

// Set stores a value with the given TTL. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := c.codec.Encode(value)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

// Invalidate evicts every cached entry for the tenant.
//
// The labels argument documents why the invalidation happened, and per-label
// invalidation rules are computed on strategies, but eviction is tenant-wide:
// the cache may over-evict, never under-evict. Finer per-label eviction would
// need a label-to-keys secondary index.
func (c *Cache) Invalidate(ctx context.Context, tenantID string, labels []string) int {
	deleted, err := c.store.DeletePrefix(ctx, c.prefix+":"+tenantID+":")
	if err != nil {
		c.log.WithError(err).WithField("tenant", tenantID).Warn("cache invalidation failed")
		return 0
	}
	c.log.WithFields(logrus.Fields{
		"tenant":  tenantID,
		"labels":  labels,
		"evicted": deleted,
	}).Debug("cache invalidated")
	return deleted
}

// Stats holds cache performance counters.
type Stats struct {
	Hits    uint64  // Number of cache hits
	Misses  uint64  // Number of cache misses
	HitRate float64 // Hit rate percentage (0-100)
}

// Stats returns a snapshot of the hit/miss counters.
func (c *Cache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}
