package scoring

import (
	"sort"

	"github.com/hearthside/homematch/internal/criteria"
)

// Classify maps a score percentage to a tier label. Thresholds are evaluated
// against the percentage of achievable points for the resolved configuration,
// so disabling criteria never caps the best listing below the top tier.
func Classify(percent float64, tiers []criteria.TierThreshold) string {
	if len(tiers) == 0 {
		tiers = criteria.DefaultTiers()
	}
	sorted := make([]criteria.TierThreshold, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinPercent > sorted[j].MinPercent })

	for _, t := range sorted {
		if percent >= t.MinPercent {
			return t.Label
		}
	}
	// Below every threshold: the lowest band catches it.
	return sorted[len(sorted)-1].Label
}
