package optimizer

import (
	"github.com/strand-analytics/graphopt/pkg/analyzer"
	"github.com/strand-analytics/graphopt/pkg/plan"
)

// CostWeights are the fixed weights of the cost heuristic.
//
// cost = nodes + relationships*Relationship + joins*Join + aggregations*Aggregation
type CostWeights struct {
	Relationship float64
	Join         float64
	Aggregation  float64
}

// DefaultCostWeights returns the canonical weights.
func DefaultCostWeights() CostWeights {
	return CostWeights{Relationship: 3, Join: 5, Aggregation: 2}
}

// rowsPerCostUnit scales cost into an upper-bound row estimate.
const rowsPerCostUnit = 100

// Estimator produces heuristic cost and row estimates from an analysis.
// Pure function of its input: no I/O, no learning, deterministic.
type Estimator struct {
	weights CostWeights
}

// NewEstimator creates an estimator; zero weights get the defaults.
func NewEstimator(weights CostWeights) *Estimator {
	if weights == (CostWeights{}) {
		weights = DefaultCostWeights()
	}
	return &Estimator{weights: weights}
}

// Estimate computes the cost and upper-bound row estimate for an analysis.
// The result is a relative ranking signal, not an execution budget.
func (e *Estimator) Estimate(a *analyzer.QueryAnalysis) plan.CostEstimate {
	cost := float64(a.NodeCount) +
		float64(a.RelationshipCount)*e.weights.Relationship +
		float64(a.JoinCount)*e.weights.Join +
		float64(a.AggregationCount)*e.weights.Aggregation

	rows := int64(cost) * rowsPerCostUnit
	if a.HasWildcard {
		rows *= 10
	}
	// An explicit LIMIT caps the row estimate.
	if a.HasLimit && a.LimitValue > 0 && rows > a.LimitValue {
		rows = a.LimitValue
	}

	return plan.CostEstimate{Cost: cost, Rows: rows}
}
