// Package main provides the graphopt CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/cache"
	"github.com/strand-analytics/graphopt/pkg/config"
	"github.com/strand-analytics/graphopt/pkg/encryption"
	"github.com/strand-analytics/graphopt/pkg/optimizer"
	"github.com/strand-analytics/graphopt/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphopt",
		Short: "graphopt - Graph Query Optimization & Adaptive Caching",
		Long: `graphopt analyzes graph queries, rewrites degenerate ones, estimates
cost, recommends indexes, and decides how results should be cached.

Configuration comes from GRAPHOPT_* environment variables; flags
override per invocation.`,
	}

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphopt v%s (%s)\n", version, commit)
		},
	})

	// Explain command
	explainCmd := &cobra.Command{
		Use:   "explain [query]",
		Short: "Show the optimization plan for a query",
		Long:  "Run the full planning pipeline for a query and render the resulting plan without executing anything",
		Args:  cobra.ExactArgs(1),
		RunE:  runExplain,
	}
	explainCmd.Flags().String("tenant", "default", "Tenant ID for cache scoping")
	explainCmd.Flags().String("priority", "medium", "Caller priority (low, medium, high)")
	explainCmd.Flags().String("indexes", "", "YAML index registry path (overrides GRAPHOPT_INDEX_REGISTRY)")
	explainCmd.Flags().Bool("json", false, "Emit the plan as JSON instead of a rendered table")
	rootCmd.AddCommand(explainCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze [query]",
		Short: "Show the structural analysis of a query",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().String("tenant", "default", "Tenant ID")
	rootCmd.AddCommand(analyzeCmd)

	// Key command
	keyCmd := &cobra.Command{
		Use:   "key [query]",
		Short: "Print the cache key a query would use",
		Args:  cobra.ExactArgs(1),
		RunE:  runKey,
	}
	keyCmd.Flags().String("tenant", "default", "Tenant ID")
	keyCmd.Flags().String("params", "{}", "Query parameters as JSON")
	rootCmd.AddCommand(keyCmd)

	// Invalidate command
	invalidateCmd := &cobra.Command{
		Use:   "invalidate [tenant]",
		Short: "Evict all cached results for a tenant",
		Long:  "Delete every cache entry scoped to the given tenant from the configured store",
		Args:  cobra.ExactArgs(1),
		RunE:  runInvalidate,
	}
	rootCmd.AddCommand(invalidateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildOptimizer assembles the pipeline from environment configuration.
func buildOptimizer(cfg *config.Config, registryPath string) (*optimizer.Optimizer, func(), error) {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	var enc *encryption.Encryptor
	if cfg.Cache.EncryptionEnabled {
		// Fixed salt: the derived key must be stable across invocations
		// so a persistent store stays readable.
		key := encryption.DeriveKey(cfg.Cache.EncryptionPassphrase, []byte("graphopt.cache.v1"), encryption.DefaultIterations)
		enc, err = encryption.NewEncryptor(key)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("creating encryptor: %w", err)
		}
	}

	adv := optimizer.NewAdvisor()
	if registryPath == "" {
		registryPath = cfg.Advisor.RegistryPath
	}
	if registryPath != "" {
		if err := adv.LoadRegistry(registryPath); err != nil {
			closeStore()
			return nil, nil, err
		}
	}

	log := cfg.BuildLogger()
	opt := optimizer.New(optimizer.Config{
		Cache: cache.New(st, cache.Config{
			Prefix:    cfg.Cache.Prefix,
			Encryptor: enc,
			Logger:    log,
		}),
		Advisor: adv,
		Rewriter: optimizer.RewriterConfig{
			AddLimit:   cfg.Rewriter.AddLimit,
			RowLimit:   cfg.Rewriter.RowLimit,
			IndexHints: cfg.Rewriter.IndexHints,
		},
		AnalyzerMemoSize:   cfg.Analyzer.MemoSize,
		Logger:             log,
		QueryLog:           cfg.Logging.QueryLogEnabled,
		SlowQueryThreshold: cfg.Logging.SlowQueryThreshold,
	})
	return opt, closeStore, nil
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendBadger:
		st, err := store.NewBadgerStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening store: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		st := store.NewMemoryStore()
		return st, func() { st.Close() }, nil
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func optimizerContext(cmd *cobra.Command, cfg *config.Config) *analyzer.Context {
	tenant, _ := cmd.Flags().GetString("tenant")
	priority, _ := cmd.Flags().GetString("priority")
	return newContext(tenant, priority, cfg == nil || cfg.Cache.Enabled)
}

// newContext builds the per-invocation optimization context. A globally
// disabled cache becomes the context-level override every strategy honors.
func newContext(tenant, priority string, cacheEnabled bool) *analyzer.Context {
	octx := &analyzer.Context{
		TenantID:  tenant,
		QueryType: analyzer.QueryTypeCypher,
		Priority:  analyzer.PriorityMedium,
	}
	switch priority {
	case "low":
		octx.Priority = analyzer.PriorityLow
	case "high":
		octx.Priority = analyzer.PriorityHigh
	}
	if !cacheEnabled {
		disabled := false
		octx.CacheEnabled = &disabled
	}
	return octx
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registryPath, _ := cmd.Flags().GetString("indexes")
	opt, closeStore, err := buildOptimizer(cfg, registryPath)
	if err != nil {
		return err
	}
	defer closeStore()

	p := opt.Optimize(cmd.Context(), args[0], optimizerContext(cmd, cfg))

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(p.Format())
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a := analyzer.New(0).Analyze(args[0], optimizerContext(cmd, nil))
	out, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runKey(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paramsJSON, _ := cmd.Flags().GetString("params")
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return fmt.Errorf("parsing --params: %w", err)
	}

	c := cache.New(store.NewMemoryStore(), cache.Config{Prefix: cfg.Cache.Prefix})
	fmt.Println(c.GenerateKey(args[0], params, optimizerContext(cmd, cfg)))
	return nil
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.StoreBackendBadger {
		return fmt.Errorf("invalidate requires a persistent store (GRAPHOPT_STORE_BACKEND=badger)")
	}

	opt, closeStore, err := buildOptimizer(cfg, "")
	if err != nil {
		return err
	}
	defer closeStore()

	evicted := opt.Invalidate(context.Background(), args[0], nil)
	fmt.Printf("evicted %d entries for tenant %s\n", evicted, args[0])
	return nil
}
