package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/explain"
	"github.com/hearthside/homematch/internal/listing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *criteria.Config {
	return &criteria.Config{
		Mode: criteria.ModeRental,
		HardFilters: criteria.HardFilters{
			PriceMax: 5000,
		},
		Criteria: []criteria.Criterion{
			{Name: "light", Weight: 15, Rule: criteria.Rule{Kind: criteria.RuleKeyword, Group: "light"}},
			{Name: "outdoor", Weight: 10, Rule: criteria.Rule{Kind: criteria.RuleKeyword, Group: "outdoor"}},
		},
		SignalGroups: map[string]criteria.SignalGroup{
			"light":   {Multiplier: 2},
			"outdoor": {Multiplier: 2},
		},
		Penalties: criteria.PenaltyConfig{ClampAtZero: true},
		Tiers: []criteria.TierThreshold{
			{MinPercent: 90, Label: "Exceptional"},
			{MinPercent: 80, Label: "Strong"},
			{MinPercent: 60, Label: "Interesting"},
			{MinPercent: 0, Label: "Pass"},
		},
	}
}

func newTestEngine(t *testing.T, cfg *criteria.Config) *Engine {
	t.Helper()
	resolved, err := criteria.Resolve(cfg, "", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return New(cfg, resolved, explain.NewComposer(21*24*time.Hour), 2, discardLogger())
}

func keywordListing(price float64, lightHits, outdoorHits int) *listing.Listing {
	hits := map[string][]string{"light": {}, "outdoor": {}}
	for i := 0; i < lightHits; i++ {
		hits["light"] = append(hits["light"], "bright")
	}
	for i := 0; i < outdoorHits; i++ {
		hits["outdoor"] = append(hits["outdoor"], "balcony")
	}
	return &listing.Listing{
		ID:       uuid.New(),
		Price:    price,
		Beds:     2,
		Baths:    1,
		Status:   listing.StatusActive,
		ListedAt: time.Now().Add(-48 * time.Hour),
		Signals:  listing.SignalBundle{KeywordHits: hits},
	}
}

func TestRunScoresAndExcludes(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	// Listing A: light raw 8 (4 hits * 2), outdoor raw 10 (5 hits * 2).
	a := keywordListing(4800, 4, 5)
	// Listing B is over the price ceiling; raw scores are irrelevant.
	b := keywordListing(5200, 5, 5)

	out := eng.Run(context.Background(), []*listing.Listing{a, b})

	if len(out.Scorecards) != 1 {
		t.Fatalf("expected 1 scorecard, got %d", len(out.Scorecards))
	}
	card := out.Scorecards[0]
	if card.ListingID != a.ID {
		t.Fatal("wrong listing scored")
	}
	if math.Abs(card.TotalPoints-22) > 0.001 {
		t.Errorf("total points = %f, want 22 (12 + 10)", card.TotalPoints)
	}
	if card.TotalAchievable != 25 {
		t.Errorf("total achievable = %f, want 25", card.TotalAchievable)
	}
	if math.Abs(card.ScorePercent-88) > 0.001 {
		t.Errorf("score percent = %f, want 88", card.ScorePercent)
	}
	if card.Tier != "Strong" {
		t.Errorf("tier = %q, want Strong", card.Tier)
	}

	if len(out.Excluded) != 1 {
		t.Fatalf("expected 1 exclusion, got %d", len(out.Excluded))
	}
	if out.Excluded[0].ListingID != b.ID {
		t.Error("wrong listing excluded")
	}
	if len(out.Excluded[0].Reasons) == 0 {
		t.Error("exclusion must carry reasons")
	}
}

func TestRunSortsByScoreDescending(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	low := keywordListing(4000, 1, 1)
	high := keywordListing(4000, 5, 5)
	mid := keywordListing(4000, 3, 3)

	out := eng.Run(context.Background(), []*listing.Listing{low, high, mid})

	if len(out.Scorecards) != 3 {
		t.Fatalf("expected 3 scorecards, got %d", len(out.Scorecards))
	}
	for i := 1; i < len(out.Scorecards); i++ {
		if out.Scorecards[i].ScorePercent > out.Scorecards[i-1].ScorePercent {
			t.Errorf("scorecards not sorted: %f before %f",
				out.Scorecards[i-1].ScorePercent, out.Scorecards[i].ScorePercent)
		}
	}
	if out.Scorecards[0].ListingID != high.ID {
		t.Error("highest scorer should rank first")
	}
}

func TestRunMonotonicity(t *testing.T) {
	// Improving one raw input with everything else fixed never lowers the
	// total score.
	eng := newTestEngine(t, testConfig())

	var prev float64 = -1
	for hits := 0; hits <= 5; hits++ {
		out := eng.Run(context.Background(), []*listing.Listing{keywordListing(4000, hits, 2)})
		got := out.Scorecards[0].ScorePercent
		if got < prev {
			t.Errorf("%d light hits scored %f, below %f with fewer hits", hits, got, prev)
		}
		prev = got
	}
}

func TestRunZeroWeightNeverCapsTopTier(t *testing.T) {
	// Disabling a criterion shrinks the denominator with the numerator, so a
	// perfect listing on the remaining criteria still reaches the top tier.
	cfg := testConfig()
	cfg.Criteria[1].Weight = 0

	eng := newTestEngine(t, cfg)
	out := eng.Run(context.Background(), []*listing.Listing{keywordListing(4000, 5, 0)})

	card := out.Scorecards[0]
	if card.TotalAchievable != 15 {
		t.Errorf("total achievable = %f, want 15", card.TotalAchievable)
	}
	if math.Abs(card.ScorePercent-100) > 0.001 {
		t.Errorf("score percent = %f, want 100", card.ScorePercent)
	}
	if card.Tier != "Exceptional" {
		t.Errorf("tier = %q, want Exceptional", card.Tier)
	}
}

func TestRunClampAtZero(t *testing.T) {
	cfg := testConfig()
	cfg.Penalties.Price = &criteria.PriceSoftCap{IdealPrice: 1000, MaxDeduction: 100}

	t.Run("clamped", func(t *testing.T) {
		eng := newTestEngine(t, cfg)
		out := eng.Run(context.Background(), []*listing.Listing{keywordListing(4999, 0, 0)})
		if got := out.Scorecards[0].TotalPoints; got != 0 {
			t.Errorf("total points = %f, want 0", got)
		}
	})

	t.Run("unclamped goes negative", func(t *testing.T) {
		cfg.Penalties.ClampAtZero = false
		eng := newTestEngine(t, cfg)
		out := eng.Run(context.Background(), []*listing.Listing{keywordListing(4999, 0, 0)})
		if got := out.Scorecards[0].TotalPoints; got >= 0 {
			t.Errorf("total points = %f, want negative", got)
		}
	})
}

func TestRunReturnsOnCanceledContext(t *testing.T) {
	// A canceled request must not wedge the pool: the producer stops feeding,
	// workers drain, and every unevaluated listing is reported as unscored.
	cfg := testConfig()
	resolved, err := criteria.Resolve(cfg, "", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	eng := New(cfg, resolved, explain.NewComposer(21*24*time.Hour), 1, discardLogger())

	batch := []*listing.Listing{
		keywordListing(4000, 1, 1),
		keywordListing(4000, 2, 2),
		keywordListing(4000, 3, 3),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan Outcome, 1)
	go func() { done <- eng.Run(ctx, batch) }()

	var out Outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if got := len(out.Scorecards) + len(out.Excluded) + len(out.Unscored); got != len(batch) {
		t.Fatalf("outcome accounts for %d of %d listings", got, len(batch))
	}
	if len(out.Unscored) != len(batch) {
		t.Errorf("unscored = %d, want %d", len(out.Unscored), len(batch))
	}
}

func TestRunFillsNarrativeFields(t *testing.T) {
	eng := newTestEngine(t, testConfig())
	out := eng.Run(context.Background(), []*listing.Listing{keywordListing(4000, 4, 2)})

	card := out.Scorecards[0]
	if len(card.TopPositives) == 0 {
		t.Error("expected top positives")
	}
	if card.KeyTradeoff == "" {
		t.Error("expected a key tradeoff")
	}
	if card.WhyNow == "" {
		t.Error("expected a why-now string")
	}
	if card.Enriched {
		t.Error("deterministic pass must not mark the card enriched")
	}
}
