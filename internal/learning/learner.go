package learning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/store"
)

// Params tunes the bounded learning heuristic.
type Params struct {
	MinLikes    int     // recompute gate
	MinDislikes int     // recompute gate
	TopK        int     // criteria attributed per feedback event
	Delta       float64 // multiplier step per qualifying event
}

// DefaultParams returns the standard 3/2 gate with top-3 attribution.
func DefaultParams() Params {
	return Params{MinLikes: 3, MinDislikes: 2, TopK: 3, Delta: 0.05}
}

// Learner applies feedback batches to per-user multiplier state. Recompute
// for one user is serialized: concurrent calls for the same user queue on a
// per-user lock so no update is lost.
type Learner struct {
	store  store.Store
	params Params
	logger *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewLearner creates a Learner.
func NewLearner(s store.Store, params Params, logger *slog.Logger) *Learner {
	if params.TopK <= 0 {
		params.TopK = 3
	}
	return &Learner{
		store:     s,
		params:    params,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (l *Learner) lockFor(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.userLocks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.userLocks[userID] = m
	}
	return m
}

// Recompute applies all unapplied feedback for a user. Below the minimum
// signal gate the call is a no-op and returns applied=false. Every resulting
// multiplier is clamped to [0.5, 2.0] regardless of cumulative deltas.
func (l *Learner) Recompute(ctx context.Context, userID string) (*store.LearnedWeightState, bool, error) {
	userLock := l.lockFor(userID)
	userLock.Lock()
	defer userLock.Unlock()

	events, err := l.store.GetUnappliedFeedback(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load feedback: %w", err)
	}

	var likes, dislikes int
	for _, e := range events {
		switch e.Direction {
		case store.DirectionLike:
			likes++
		case store.DirectionDislike:
			dislikes++
		}
	}
	if likes < l.params.MinLikes || dislikes < l.params.MinDislikes {
		l.logger.Debug("feedback below recompute gate, no-op",
			"user", userID, "likes", likes, "dislikes", dislikes)
		state, err := l.store.GetLearnedWeights(ctx, userID)
		return state, false, err
	}

	state, err := l.store.GetLearnedWeights(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load learned weights: %w", err)
	}
	if state == nil {
		state = &store.LearnedWeightState{UserID: userID, Multipliers: map[string]float64{}}
	}
	if state.Multipliers == nil {
		state.Multipliers = map[string]float64{}
	}

	for _, e := range events {
		delta := l.params.Delta
		if e.Direction == store.DirectionDislike {
			delta = -l.params.Delta
		}
		for _, name := range topContributors(e.Snapshot, l.params.TopK) {
			m, ok := state.Multipliers[name]
			if !ok {
				m = 1.0
			}
			state.Multipliers[name] = clampMultiplier(m + delta)
		}
		state.UpdateCount++
	}
	state.UpdatedAt = time.Now().UTC()

	if err := l.store.SaveLearnedWeights(ctx, state); err != nil {
		return nil, false, fmt.Errorf("save learned weights: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if err := l.store.MarkFeedbackApplied(ctx, ids); err != nil {
		return nil, false, fmt.Errorf("mark feedback applied: %w", err)
	}

	l.logger.Info("recomputed learned weights",
		"user", userID, "events", len(events), "update_count", state.UpdateCount)
	return state, true, nil
}

// Reset restores the identity multipliers for a user.
func (l *Learner) Reset(ctx context.Context, userID string) error {
	userLock := l.lockFor(userID)
	userLock.Lock()
	defer userLock.Unlock()
	return l.store.DeleteLearnedWeights(ctx, userID)
}

func clampMultiplier(m float64) float64 {
	if m < criteria.MinMultiplier {
		return criteria.MinMultiplier
	}
	if m > criteria.MaxMultiplier {
		return criteria.MaxMultiplier
	}
	return m
}

// topContributors reads the top-K criteria by weighted contribution out of a
// scorecard snapshot.
func topContributors(snapshot map[string]interface{}, k int) []string {
	raw, ok := snapshot["per_criterion_contributions"].([]interface{})
	if !ok {
		return nil
	}
	type contrib struct {
		name     string
		weighted float64
	}
	var contribs []contrib
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		weighted, _ := m["weighted"].(float64)
		if name == "" {
			continue
		}
		contribs = append(contribs, contrib{name: name, weighted: weighted})
	}
	sort.SliceStable(contribs, func(i, j int) bool { return contribs[i].weighted > contribs[j].weighted })
	if len(contribs) > k {
		contribs = contribs[:k]
	}
	names := make([]string, 0, len(contribs))
	for _, c := range contribs {
		names = append(names, c.name)
	}
	return names
}

// Describe renders a learned state as a human-readable preference summary.
func Describe(state *store.LearnedWeightState) string {
	if state == nil || len(state.Multipliers) == 0 {
		return "no learned preferences yet"
	}
	var up, down []string
	for name, m := range state.Multipliers {
		switch {
		case m > 1.0:
			up = append(up, name)
		case m < 1.0:
			down = append(down, name)
		}
	}
	sort.Strings(up)
	sort.Strings(down)

	var parts []string
	if len(up) > 0 {
		parts = append(parts, "cares more about "+strings.Join(up, ", "))
	}
	if len(down) > 0 {
		parts = append(parts, "cares less about "+strings.Join(down, ", "))
	}
	if len(parts) == 0 {
		return "preferences match the baseline"
	}
	return strings.Join(parts, "; ")
}
