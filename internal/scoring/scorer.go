package scoring

import (
	"fmt"
	"log/slog"

	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/listing"
)

// neutralScore is used when no signal evidence exists for a criterion at all.
// Sparse descriptions are low-confidence, not bad.
const neutralScore = 5.0

// Scorer computes per-criterion raw scores and weighted contributions for a
// resolved configuration. It holds no mutable state and is safe for
// concurrent use across listings.
type Scorer struct {
	resolved *criteria.Resolved
	groups   map[string]criteria.SignalGroup
	logger   *slog.Logger
}

// NewScorer creates a Scorer for one resolved configuration.
func NewScorer(resolved *criteria.Resolved, groups map[string]criteria.SignalGroup, logger *slog.Logger) *Scorer {
	return &Scorer{resolved: resolved, groups: groups, logger: logger}
}

// ScoreListing scores every nonzero-weight criterion. Raw scores are always
// in [0,10]; weighted contributions in [0, weight].
func (s *Scorer) ScoreListing(l *listing.Listing) []CriterionResult {
	results := make([]CriterionResult, 0, len(s.resolved.Criteria))
	for _, cr := range s.resolved.Criteria {
		res := s.scoreCriterion(l, cr)
		res.Weight = cr.Weight
		res.Weighted = res.Raw / 10.0 * cr.Weight
		if !res.Available {
			s.logger.Debug("no evidence for criterion, using neutral midpoint",
				"listing_id", l.ID, "criterion", cr.Name)
		}
		results = append(results, res)
	}
	return results
}

func (s *Scorer) scoreCriterion(l *listing.Listing, cr criteria.Criterion) CriterionResult {
	switch cr.Rule.Kind {
	case criteria.RuleKeyword:
		return s.keywordScore(l, cr)
	case criteria.RuleNumeric:
		return s.numericScore(l, cr)
	case criteria.RuleFlag:
		return s.flagScore(l, cr)
	case criteria.RuleExternal:
		return s.externalScore(l, cr)
	}
	// Unreachable for a validated config; neutral keeps scoring total.
	return CriterionResult{Name: cr.Name, Raw: neutralScore, Available: false, Reason: "no rule"}
}

// keywordScore scales positive-category hit density by the group multiplier,
// then applies the negative category as a deduction — unless the negative
// group's correlated positive category hit anywhere in the same text, which
// suppresses the deduction entirely.
func (s *Scorer) keywordScore(l *listing.Listing, cr criteria.Criterion) CriterionResult {
	hits, analyzed := l.Signals.KeywordHitCount(cr.Rule.Group)
	if !analyzed {
		return CriterionResult{Name: cr.Name, Raw: neutralScore, Available: false, Reason: "keyword analysis unavailable"}
	}

	group := s.groups[cr.Rule.Group]
	raw := clamp(float64(hits)*group.Multiplier, 0, 10)
	reason := fmt.Sprintf("%d keyword hits", hits)
	evidence := l.Signals.KeywordHits[cr.Rule.Group]

	if cr.Rule.NegativeGroup != "" {
		negHits, _ := l.Signals.KeywordHitCount(cr.Rule.NegativeGroup)
		if negHits > 0 {
			neg := s.groups[cr.Rule.NegativeGroup]
			suppressor := neg.SuppressedBy
			if suppressor == "" {
				suppressor = cr.Rule.Group
			}
			supHits, _ := l.Signals.KeywordHitCount(suppressor)
			if supHits > 0 {
				reason += fmt.Sprintf(", negative %q suppressed by %q", cr.Rule.NegativeGroup, suppressor)
			} else {
				raw = clamp(raw-float64(negHits)*neg.Multiplier, 0, 10)
				reason += fmt.Sprintf(", %d negative hits applied", negHits)
				evidence = append(evidence, l.Signals.KeywordHits[cr.Rule.NegativeGroup]...)
			}
		}
	}

	return CriterionResult{Name: cr.Name, Raw: raw, Available: true, Reason: reason, Evidence: evidence}
}

// numericScore checks a listing attribute against a threshold: full marks at
// or above, proportional below, neutral when the attribute was never
// extracted.
func (s *Scorer) numericScore(l *listing.Listing, cr criteria.Criterion) CriterionResult {
	v, ok := l.Attributes[cr.Rule.Attribute]
	if !ok {
		return CriterionResult{Name: cr.Name, Raw: neutralScore, Available: false, Reason: "attribute not extracted"}
	}
	raw := 10.0
	if v < cr.Rule.Threshold {
		raw = clamp(v/cr.Rule.Threshold*10.0, 0, 10)
	}
	return CriterionResult{
		Name: cr.Name, Raw: raw, Available: true,
		Reason: fmt.Sprintf("%s=%.1f vs threshold %.1f", cr.Rule.Attribute, v, cr.Rule.Threshold),
	}
}

func (s *Scorer) flagScore(l *listing.Listing, cr criteria.Criterion) CriterionResult {
	f, ok := l.Signals.Flag(cr.Rule.Flag)
	if !ok {
		return CriterionResult{Name: cr.Name, Raw: neutralScore, Available: false, Reason: "flag not observed"}
	}
	if f.Value {
		return CriterionResult{Name: cr.Name, Raw: 10, Available: true, Reason: cr.Rule.Flag + " present"}
	}
	return CriterionResult{Name: cr.Name, Raw: 0, Available: true, Reason: cr.Rule.Flag + " absent"}
}

// externalScore rescales an upstream score (tranquility, visual quality) to
// 0-10. A nil signal means the enricher never covered this listing.
func (s *Scorer) externalScore(l *listing.Listing, cr criteria.Criterion) CriterionResult {
	var sig *listing.ScoreSignal
	switch cr.Rule.Source {
	case criteria.SourceTranquility:
		sig = l.Signals.Tranquility
	case criteria.SourceVisualQuality:
		sig = l.Signals.VisualQuality
	}
	if sig == nil {
		return CriterionResult{Name: cr.Name, Raw: neutralScore, Available: false, Reason: cr.Rule.Source + " unavailable"}
	}
	scale := sig.Scale
	if scale <= 0 {
		scale = 10
	}
	raw := clamp(sig.Value/scale*10.0, 0, 10)
	return CriterionResult{
		Name: cr.Name, Raw: raw, Available: true,
		Reason: fmt.Sprintf("%s %.1f/%.0f", cr.Rule.Source, sig.Value, scale),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
