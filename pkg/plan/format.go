package plan

import (
	"fmt"
	"strings"
)

// Format renders the plan as a bordered text table for CLI output.
func (p *QueryPlan) Format() string {
	var sb strings.Builder

	rule := fmt.Sprintf("+-%s-+\n", strings.Repeat("-", 60))

	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("| %-60s |\n", "Query Plan "+p.ID))
	sb.WriteString(rule)

	writeRow := func(label, value string) {
		sb.WriteString(fmt.Sprintf("| %-60s |\n", fmt.Sprintf("%s: %s", label, truncate(value, 60-len(label)-2))))
	}

	writeRow("Query", p.OptimizedQuery)
	writeRow("Estimated Cost", fmt.Sprintf("%.1f", p.EstimatedCost))
	writeRow("Estimated Rows", fmt.Sprintf("%d", p.EstimatedRows))
	if len(p.Indexes) > 0 {
		writeRow("Indexes", strings.Join(p.Indexes, ", "))
	}
	if p.Traversal != "" {
		writeRow("Traversal", string(p.Traversal))
	}

	if p.Cache != nil {
		sb.WriteString(rule)
		if p.Cache.Enabled {
			writeRow("Cache", fmt.Sprintf("enabled, ttl=%s", p.Cache.TTL))
			writeRow("Key Pattern", p.Cache.KeyPattern)
			if len(p.Cache.InvalidationRules) > 0 {
				writeRow("Invalidation", strings.Join(p.Cache.InvalidationRules, ", "))
			}
		} else {
			writeRow("Cache", "disabled")
		}
	}

	if len(p.Optimizations) > 0 {
		sb.WriteString(rule)
		for _, r := range p.Optimizations {
			status := "recommended"
			if r.Applied {
				status = "applied"
			}
			line := fmt.Sprintf("+- %s [%s, %s impact] %s", r.Name, r.Category, r.Impact, status)
			sb.WriteString(fmt.Sprintf("| %-60s |\n", truncate(line, 60)))
		}
	}

	sb.WriteString(rule)
	return sb.String()
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
