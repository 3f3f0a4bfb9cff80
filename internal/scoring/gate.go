package scoring

import (
	"fmt"
	"strings"

	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/listing"
)

// GateResult is the hard filter verdict. Reasons are diagnostic only; a
// failing listing receives no scorecard.
type GateResult struct {
	Pass    bool     `json:"pass"`
	Reasons []string `json:"reasons,omitempty"`
}

// EvaluateGate runs the hard filter against one listing. Structural checks
// fail unconditionally; mode disqualifiers fire only in their configured
// mode; red flags fire only when the signal is confirmed at or above its
// confidence floor. Unknown or absent fields never fail.
func EvaluateGate(l *listing.Listing, cfg *criteria.Config) GateResult {
	var reasons []string
	hf := cfg.HardFilters

	if hf.PriceMax > 0 && l.Price > hf.PriceMax {
		reasons = append(reasons, fmt.Sprintf("price %.0f above ceiling %.0f", l.Price, hf.PriceMax))
	}
	// A zero bed/bath/sqft count means extraction never produced the field,
	// not a confirmed measurement.
	if hf.MinBeds > 0 && l.Beds > 0 && l.Beds < hf.MinBeds {
		reasons = append(reasons, fmt.Sprintf("%d beds below minimum %d", l.Beds, hf.MinBeds))
	}
	if hf.MinBaths > 0 && l.Baths > 0 && l.Baths < hf.MinBaths {
		reasons = append(reasons, fmt.Sprintf("%.1f baths below minimum %.1f", l.Baths, hf.MinBaths))
	}
	if hf.MinSqft > 0 && l.Sqft > 0 && l.Sqft < hf.MinSqft {
		reasons = append(reasons, fmt.Sprintf("%.0f sqft below minimum %.0f", l.Sqft, hf.MinSqft))
	}
	if len(hf.Neighborhoods) > 0 && l.Neighborhood != "" && !inAllowlist(l.Neighborhood, hf.Neighborhoods) {
		reasons = append(reasons, fmt.Sprintf("neighborhood %q not in allowlist", l.Neighborhood))
	}

	for _, d := range hf.Disqualifiers {
		if d.Mode != cfg.Mode {
			continue
		}
		if f, ok := l.Signals.Flag(d.Flag); ok && f.Value {
			reason := d.Reason
			if reason == "" {
				reason = "disqualifier: " + d.Flag
			}
			reasons = append(reasons, reason)
		}
	}

	for _, rf := range hf.RedFlags {
		f, ok := l.Signals.Flag(rf.Signal)
		if !ok {
			continue // insufficient evidence, not evidence of failure
		}
		if f.Value && f.Confidence >= rf.MinConfidence {
			reason := rf.Reason
			if reason == "" {
				reason = "confirmed red flag: " + rf.Signal
			}
			reasons = append(reasons, reason)
		}
	}

	return GateResult{Pass: len(reasons) == 0, Reasons: reasons}
}

func inAllowlist(neighborhood string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(neighborhood)) {
			return true
		}
	}
	return false
}
