package listing

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusRelisted Status = "relisted"
	StatusDelisted Status = "delisted"
)

// Listing is the read-only scoring input. Structural attributes come from the
// provider adapter; the signal bundle is precomputed by upstream enrichment.
type Listing struct {
	ID           uuid.UUID `json:"listing_id"`
	Title        string    `json:"title,omitempty"`
	Neighborhood string    `json:"neighborhood"`
	Price        float64   `json:"price"`
	Beds         int       `json:"beds"`
	Baths        float64   `json:"baths"`
	Sqft         float64   `json:"sqft"`
	MonthlyFee   float64   `json:"monthly_fee,omitempty"`
	Status       Status    `json:"status"`
	Amenities    []string  `json:"amenities,omitempty"`
	Description  string    `json:"description,omitempty"`

	// Numeric attributes surfaced by the extractor (e.g. ceiling_height_ft).
	Attributes map[string]float64 `json:"attributes,omitempty"`

	Signals SignalBundle  `json:"signals"`
	Changes []ChangeEvent `json:"changes,omitempty"`

	ListedAt time.Time `json:"listed_at"`
}

// SignalBundle carries every precomputed signal, one field per signal kind so
// the scorer can match on kind instead of probing an untyped map.
type SignalBundle struct {
	// KeywordHits maps a signal-group name to the verbatim keywords that hit
	// in the description. A nil map means keyword analysis never ran.
	KeywordHits map[string][]string `json:"keyword_hits,omitempty"`

	// Tranquility and VisualQuality are nil for listings the upstream
	// enrichers could not cover (e.g. out-of-region geocoding).
	Tranquility   *ScoreSignal `json:"tranquility,omitempty"`
	VisualQuality *ScoreSignal `json:"visual_quality,omitempty"`

	// Flags are boolean findings with confidence, e.g. dark_interior or
	// busy_street from photo analysis, no_pets from the description parser.
	Flags map[string]FlagSignal `json:"flags,omitempty"`
}

// ScoreSignal is an externally computed score on its own scale.
type ScoreSignal struct {
	Value      float64 `json:"value"`
	Scale      float64 `json:"scale"` // maximum of the source scale, e.g. 100
	Confidence float64 `json:"confidence"`
}

// FlagSignal is a boolean finding with the detector's confidence.
type FlagSignal struct {
	Value      bool    `json:"value"`
	Confidence float64 `json:"confidence"`
}

type ChangeKind string

const (
	ChangePriceDrop    ChangeKind = "price_drop"
	ChangeStatusChange ChangeKind = "status_change"
	ChangeRelisted     ChangeKind = "relisted"
)

// ChangeEvent is one entry in the listing's change timeline, newest last.
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	OccurredAt time.Time  `json:"occurred_at"`
	OldPrice   *float64   `json:"old_price,omitempty"`
	NewPrice   *float64   `json:"new_price,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// KeywordHitCount returns the hit count for a signal group and whether keyword
// analysis ran at all for this listing.
func (b SignalBundle) KeywordHitCount(group string) (int, bool) {
	if b.KeywordHits == nil {
		return 0, false
	}
	return len(b.KeywordHits[group]), true
}

// Flag returns the named flag signal, if present.
func (b SignalBundle) Flag(name string) (FlagSignal, bool) {
	f, ok := b.Flags[name]
	return f, ok
}
