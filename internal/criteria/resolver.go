package criteria

import "fmt"

// Learned multiplier bounds. The learning module clamps on write; the
// resolver clamps again on read so a corrupt stored state can never push a
// weight outside the contract.
const (
	MinMultiplier = 0.5
	MaxMultiplier = 2.0
)

// Resolved is the effective configuration for one scoring pass. Criteria with
// effective weight zero are omitted entirely: they are not scored and do not
// count toward TotalAchievable.
type Resolved struct {
	Criteria        []Criterion // nonzero effective weight, in config order
	Weights         map[string]float64
	TotalAchievable float64
}

// Resolve merges base weights, an optional named preset, and optional learned
// multipliers, strictly in that order. Each step is pure; the inputs are not
// mutated.
func Resolve(cfg *Config, preset string, learned map[string]float64) (*Resolved, error) {
	var overrides map[string]float64
	if preset != "" {
		var ok bool
		overrides, ok = cfg.Presets[preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", preset)
		}
	}

	r := &Resolved{Weights: make(map[string]float64, len(cfg.Criteria))}
	for _, cr := range cfg.Criteria {
		w := cr.Weight
		if ov, ok := overrides[cr.Name]; ok {
			w = ov
		}
		if m, ok := learned[cr.Name]; ok {
			w *= clampMultiplier(m)
		}
		if w <= 0 {
			continue
		}
		eff := cr
		eff.Weight = w
		r.Criteria = append(r.Criteria, eff)
		r.Weights[cr.Name] = w
		r.TotalAchievable += w
	}

	if r.TotalAchievable <= 0 {
		return nil, fmt.Errorf("resolved configuration has no scoreable criteria (preset %q)", preset)
	}
	return r, nil
}

func clampMultiplier(m float64) float64 {
	if m < MinMultiplier {
		return MinMultiplier
	}
	if m > MaxMultiplier {
		return MaxMultiplier
	}
	return m
}
