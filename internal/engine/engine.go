package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/explain"
	"github.com/hearthside/homematch/internal/listing"
	"github.com/hearthside/homematch/internal/scoring"
)

var (
	listingsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homematch_listings_scored_total",
		Help: "Listings that passed the gate and received a scorecard.",
	})
	listingsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homematch_listings_hard_filtered_total",
		Help: "Listings excluded by the hard filter gate.",
	})
	scoringPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "homematch_scoring_pass_seconds",
		Help:    "Wall time of one scoring pass.",
		Buckets: prometheus.DefBuckets,
	})
)

// Engine runs the full decision pipeline for one resolved configuration:
// gate, criterion scoring, penalties, tiering, deterministic narrative.
// The configuration is immutable for the engine's lifetime; scoring holds no
// shared mutable state, so listings are scored concurrently.
type Engine struct {
	cfg      *criteria.Config
	resolved *criteria.Resolved
	scorer   *scoring.Scorer
	composer *explain.Composer
	workers  int
	logger   *slog.Logger
}

// Outcome is the result of one scoring pass. Scorecards are sorted by
// score_percent descending; hard-filtered listings appear only in Excluded.
// If the pass is canceled mid-batch, listings that were never evaluated are
// reported in Unscored rather than silently dropped.
type Outcome struct {
	Scorecards []*scoring.Scorecard `json:"scorecards"`
	Excluded   []scoring.Exclusion  `json:"excluded,omitempty"`
	Unscored   []uuid.UUID          `json:"unscored,omitempty"`
}

// New creates an Engine for one scoring pass.
func New(cfg *criteria.Config, resolved *criteria.Resolved, composer *explain.Composer, workers int, logger *slog.Logger) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		cfg:      cfg,
		resolved: resolved,
		scorer:   scoring.NewScorer(resolved, cfg.SignalGroups, logger),
		composer: composer,
		workers:  workers,
		logger:   logger,
	}
}

// Run scores the batch. Each listing is independent; a bounded worker pool
// fans them out and results are collected by index to keep determinism.
// Cancellation returns promptly: the producer stops feeding, workers drain
// the channel without scoring, and whatever was never evaluated comes back
// in Outcome.Unscored.
func (e *Engine) Run(ctx context.Context, listings []*listing.Listing) Outcome {
	start := time.Now()
	defer func() { scoringPassDuration.Observe(time.Since(start).Seconds()) }()

	type slot struct {
		card     *scoring.Scorecard
		excluded *scoring.Exclusion
	}
	slots := make([]slot, len(listings))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					continue // drain without scoring
				default:
				}
				l := listings[i]
				if gate := scoring.EvaluateGate(l, e.cfg); !gate.Pass {
					slots[i].excluded = &scoring.Exclusion{ListingID: l.ID, Reasons: gate.Reasons}
					continue
				}
				slots[i].card = e.scoreOne(l)
			}
		}()
	}
	for i := range listings {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	out := Outcome{}
	for i, s := range slots {
		switch {
		case s.card != nil:
			out.Scorecards = append(out.Scorecards, s.card)
			listingsScored.Inc()
		case s.excluded != nil:
			out.Excluded = append(out.Excluded, *s.excluded)
			listingsFiltered.Inc()
		default:
			out.Unscored = append(out.Unscored, listings[i].ID)
		}
	}
	sort.SliceStable(out.Scorecards, func(i, j int) bool {
		return out.Scorecards[i].ScorePercent > out.Scorecards[j].ScorePercent
	})
	return out
}

func (e *Engine) scoreOne(l *listing.Listing) *scoring.Scorecard {
	results := e.scorer.ScoreListing(l)

	var total float64
	for _, r := range results {
		total += r.Weighted
	}

	penalties, deduction := scoring.ApplyPenalties(l, e.cfg)
	total -= deduction
	if e.cfg.Penalties.ClampAtZero && total < 0 {
		total = 0
	}

	percent := total / e.resolved.TotalAchievable * 100

	card := &scoring.Scorecard{
		ID:              uuid.New(),
		ListingID:       l.ID,
		TotalPoints:     total,
		TotalAchievable: e.resolved.TotalAchievable,
		ScorePercent:    percent,
		Tier:            scoring.Classify(percent, e.cfg.Tiers),
		Criteria:        results,
		Penalties:       penalties,
		Signals:         l.Signals,
		CreatedAt:       time.Now().UTC(),
	}
	e.composer.Compose(card, l)
	return card
}
