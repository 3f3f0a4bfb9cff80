package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/homematch/internal/listing"
)

// CriterionResult captures one criterion's contribution to the total score.
type CriterionResult struct {
	Name      string   `json:"name"`
	Raw       float64  `json:"raw"` // 0-10
	Weight    float64  `json:"weight"`
	Weighted  float64  `json:"weighted"` // (raw/10) * weight
	Available bool     `json:"available"`
	Reason    string   `json:"reason"`
	Evidence  []string `json:"evidence,omitempty"`
}

// PenaltyResult is one applied (or waived) deduction.
type PenaltyResult struct {
	Name      string  `json:"name"`
	Deduction float64 `json:"deduction"`
	Waived    bool    `json:"waived,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// Highlight is a narrative fragment tied to a criterion. Text may be replaced
// by enrichment; Criterion and the numbers behind it never are.
type Highlight struct {
	Criterion string `json:"criterion"`
	Text      string `json:"text"`
}

// Scorecard is the full auditable scoring output for one listing.
type Scorecard struct {
	ID        uuid.UUID `json:"scorecard_id"`
	ListingID uuid.UUID `json:"listing_id"`
	UserID    string    `json:"user_id,omitempty"`
	Preset    string    `json:"preset,omitempty"`

	TotalPoints     float64 `json:"total_points"`
	TotalAchievable float64 `json:"total_achievable_points"`
	ScorePercent    float64 `json:"score_percent"`
	Tier            string  `json:"tier"`

	Criteria  []CriterionResult `json:"per_criterion_contributions"`
	Penalties []PenaltyResult   `json:"penalties,omitempty"`

	TopPositives []Highlight `json:"top_positives,omitempty"`
	KeyTradeoff  string      `json:"key_tradeoff,omitempty"`
	WhyNow       string      `json:"why_now,omitempty"`
	Enriched     bool        `json:"enriched,omitempty"`

	Signals listing.SignalBundle `json:"signals_snapshot"`

	CreatedAt time.Time `json:"created_at"`
}

// Exclusion reports a listing rejected by the hard filter gate.
type Exclusion struct {
	ListingID uuid.UUID `json:"listing_id"`
	Reasons   []string  `json:"reasons"`
}
