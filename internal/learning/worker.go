package learning

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthside/homematch/internal/events"
	"github.com/hearthside/homematch/internal/store"
)

// Worker runs out-of-band recomputes: on each tick it finds users whose
// pending feedback meets the gate and applies it. Per-user serialization is
// the Learner's job; the worker just drives it.
type Worker struct {
	store    store.Store
	learner  *Learner
	events   events.Client
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a recompute worker. events may be nil.
func NewWorker(s store.Store, l *Learner, ev events.Client, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		store:    s,
		learner:  l,
		events:   ev,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// SetupSubscriptions wires event-driven recomputes: a recorded feedback event
// nudges the user's recompute ahead of the next tick. The gate still applies.
func (w *Worker) SetupSubscriptions(ctx context.Context) {
	if w.events == nil {
		return
	}
	err := w.events.Subscribe("homematch.feedback.>", func(subject string, data []byte) {
		var ev events.FeedbackRecordedEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.UserID == "" {
			return
		}
		w.recomputeUser(ctx, ev.UserID)
	})
	if err != nil {
		w.logger.Warn("failed to subscribe to feedback events", "error", err)
	}
}

func (w *Worker) tick(ctx context.Context) {
	users, err := w.store.ListUsersWithPendingFeedback(ctx)
	if err != nil {
		w.logger.Error("failed to list users with pending feedback", "error", err)
		return
	}

	for _, u := range users {
		if u.Likes < w.learner.params.MinLikes || u.Dislikes < w.learner.params.MinDislikes {
			continue
		}
		w.recomputeUser(ctx, u.UserID)
	}
}

func (w *Worker) recomputeUser(ctx context.Context, userID string) {
	state, applied, err := w.learner.Recompute(ctx, userID)
	if err != nil {
		w.logger.Error("recompute failed", "user", userID, "error", err)
		return
	}
	if applied && w.events != nil {
		_ = w.events.Publish(ctx, events.SubjectWeightsRecomputed(userID), events.WeightsRecomputedEvent{
			UserID:      userID,
			UpdateCount: state.UpdateCount,
			Multipliers: state.Multipliers,
		})
	}
}
