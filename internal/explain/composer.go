package explain

import (
	"fmt"
	"sort"
	"time"

	"github.com/hearthside/homematch/internal/listing"
	"github.com/hearthside/homematch/internal/scoring"
)

// Composer produces the deterministic narrative: top positives, key tradeoff,
// and the "why now" line. It needs nothing external and always runs.
type Composer struct {
	staleAfter time.Duration
	now        func() time.Time
}

// NewComposer creates a Composer. staleAfter controls when a quiet listing is
// called out as negotiable.
func NewComposer(staleAfter time.Duration) *Composer {
	return &Composer{staleAfter: staleAfter, now: time.Now}
}

// Compose fills the scorecard's narrative fields from its own numbers and the
// listing's change timeline. Numeric fields are never touched.
func (c *Composer) Compose(card *scoring.Scorecard, l *listing.Listing) {
	card.TopPositives = c.topPositives(card.Criteria)
	card.KeyTradeoff = c.keyTradeoff(card.Criteria)
	card.WhyNow = c.whyNow(l)
}

// topPositives picks the three highest weighted contributions.
func (c *Composer) topPositives(results []scoring.CriterionResult) []scoring.Highlight {
	sorted := make([]scoring.CriterionResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weighted > sorted[j].Weighted })

	var out []scoring.Highlight
	for _, r := range sorted {
		if len(out) == 3 {
			break
		}
		out = append(out, scoring.Highlight{
			Criterion: r.Name,
			Text:      fmt.Sprintf("%s: %.1f/10 (%s)", r.Name, r.Raw, r.Reason),
		})
	}
	return out
}

// keyTradeoff is the weakest contributor among scored criteria: the one thing
// a buyer gives up by choosing this listing.
func (c *Composer) keyTradeoff(results []scoring.CriterionResult) string {
	if len(results) == 0 {
		return ""
	}
	worst := results[0]
	for _, r := range results[1:] {
		if r.Weighted < worst.Weighted {
			worst = r
		}
	}
	return fmt.Sprintf("%s scores %.1f/10 (%s)", worst.Name, worst.Raw, worst.Reason)
}

// whyNow picks the most recent relevant change event, falling back to
// staleness and then recency of the listing itself.
func (c *Composer) whyNow(l *listing.Listing) string {
	var latest *listing.ChangeEvent
	for i := range l.Changes {
		ev := &l.Changes[i]
		if latest == nil || ev.OccurredAt.After(latest.OccurredAt) {
			latest = ev
		}
	}

	if latest != nil {
		switch latest.Kind {
		case listing.ChangePriceDrop:
			if latest.OldPrice != nil && latest.NewPrice != nil {
				return fmt.Sprintf("Price dropped %.0f on %s", *latest.OldPrice-*latest.NewPrice,
					latest.OccurredAt.Format("Jan 2"))
			}
			return "Price dropped " + latest.OccurredAt.Format("Jan 2")
		case listing.ChangeRelisted:
			return "Relisted " + latest.OccurredAt.Format("Jan 2") + " — seller may be motivated"
		case listing.ChangeStatusChange:
			if latest.Detail != "" {
				return latest.Detail
			}
			return "Status changed " + latest.OccurredAt.Format("Jan 2")
		}
	}

	if c.staleAfter > 0 && !l.ListedAt.IsZero() {
		age := c.now().Sub(l.ListedAt)
		if age > c.staleAfter {
			days := int(age.Hours() / 24)
			return fmt.Sprintf("On market %d days — room to negotiate", days)
		}
	}
	return "Newly listed"
}
