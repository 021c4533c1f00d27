package optimizer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/strand-analytics/graphopt/pkg/plan"
)

// Advisor compares required indexes against a registry of known indexes
// and recommends creating the ones that are missing.
//
// The registry is maintained externally: populate it from static config
// (LoadRegistry) or at runtime (RegisterIndex) as indexes come online.
//
// Thread Safety: safe for concurrent use.
type Advisor struct {
	mu    sync.RWMutex
	known map[string]bool
}

// NewAdvisor creates an advisor with an empty registry. With nothing
// registered, every required index is reported as missing.
func NewAdvisor() *Advisor {
	return &Advisor{known: make(map[string]bool)}
}

// RegisterIndex marks an index (e.g. "User.email") as existing.
func (a *Advisor) RegisterIndex(name string) {
	a.mu.Lock()
	a.known[name] = true
	a.mu.Unlock()
}

// UnregisterIndex removes an index from the registry.
func (a *Advisor) UnregisterIndex(name string) {
	a.mu.Lock()
	delete(a.known, name)
	a.mu.Unlock()
}

// KnownIndexes returns the sorted registry contents.
func (a *Advisor) KnownIndexes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.known))
	for name := range a.known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// indexRegistryFile is the on-disk registry format:
//
//	indexes:
//	  - User.email
//	  - Order.created_at
type indexRegistryFile struct {
	Indexes []string `yaml:"indexes"`
}

// LoadRegistry reads a YAML index registry and registers its entries.
// Existing registrations are kept.
func (a *Advisor) LoadRegistry(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index registry: %w", err)
	}
	return a.LoadRegistryBytes(data)
}

// LoadRegistryBytes registers indexes from YAML registry content.
func (a *Advisor) LoadRegistryBytes(data []byte) error {
	var file indexRegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse index registry: %w", err)
	}
	a.mu.Lock()
	for _, name := range file.Indexes {
		name = strings.TrimSpace(name)
		if name != "" {
			a.known[name] = true
		}
	}
	a.mu.Unlock()
	return nil
}

// Recommend checks the required indexes against the registry.
//
// Missing indexes produce a missing_indexes rule with high impact and
// applied=false (advice, not an applied transformation). When nothing
// is missing the advisor still returns a named rule so callers can
// filter by name instead of checking for nil.
func (a *Advisor) Recommend(requiredIndexes []string) plan.OptimizationRule {
	a.mu.RLock()
	var missing []string
	for _, idx := range requiredIndexes {
		if !a.known[idx] {
			missing = append(missing, idx)
		}
	}
	a.mu.RUnlock()

	if len(missing) > 0 {
		sort.Strings(missing)
		return plan.OptimizationRule{
			Name:        plan.RuleMissingIndexes,
			Category:    plan.CategoryIndexHint,
			Description: "recommend creating indexes used by this query",
			Impact:      plan.ImpactHigh,
			Applied:     false,
			Reason:      "missing indexes: " + strings.Join(missing, ", "),
		}
	}

	return plan.OptimizationRule{
		Name:        plan.RuleIndexesOK,
		Category:    plan.CategoryIndexHint,
		Description: "all required indexes exist",
		Impact:      plan.ImpactLow,
		Applied:     false,
		Reason:      "no action needed",
	}
}
