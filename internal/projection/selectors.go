package projection

import (
	"sort"

	"github.com/churnlabs/churnguard/internal/models"
)

// ByRiskLevel filters rows on the model-assigned risk level.
func ByRiskLevel(rows []models.CustomerProjection, level string) []models.CustomerProjection {
	out := []models.CustomerProjection{}
	for _, r := range rows {
		if r.RiskLevel == level {
			out = append(out, r)
		}
	}
	return out
}

// ByRevenueTier filters rows on the derived revenue tier.
func ByRevenueTier(rows []models.CustomerProjection, tier string) []models.CustomerProjection {
	out := []models.CustomerProjection{}
	for _, r := range rows {
		if r.RevenueTier == tier {
			out = append(out, r)
		}
	}
	return out
}

// TopPriority returns up to limit rows with the highest priority score.
func TopPriority(rows []models.CustomerProjection, limit int) []models.CustomerProjection {
	out := append([]models.CustomerProjection(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityScore > out[j].PriorityScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
