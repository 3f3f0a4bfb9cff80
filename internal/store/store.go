package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionLike    Direction = "like"
	DirectionDislike Direction = "dislike"
)

// FeedbackEvent is one append-only user reaction, carrying the scorecard
// snapshot shown at the time so learning can attribute the reaction.
type FeedbackEvent struct {
	ID        uuid.UUID              `json:"id"`
	UserID    string                 `json:"user_id"`
	ListingID uuid.UUID              `json:"listing_id"`
	Direction Direction              `json:"direction"`
	Snapshot  map[string]interface{} `json:"scorecard_snapshot,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	AppliedAt *time.Time             `json:"applied_at,omitempty"`
}

// LearnedWeightState is the per-user multiplier map. Mutated only by the
// learning module; everyone else reads it as an immutable input.
type LearnedWeightState struct {
	UserID      string             `json:"user_id"`
	Multipliers map[string]float64 `json:"multipliers"`
	UpdateCount int                `json:"update_count"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ScorecardRecord is the persisted audit copy of a scorecard.
type ScorecardRecord struct {
	ID           uuid.UUID              `json:"id"`
	ListingID    uuid.UUID              `json:"listing_id"`
	UserID       string                 `json:"user_id,omitempty"`
	ScorePercent float64                `json:"score_percent"`
	Tier         string                 `json:"tier"`
	Payload      map[string]interface{} `json:"payload"`
	CreatedAt    time.Time              `json:"created_at"`
}

// PendingUser is a user with unapplied feedback, with per-direction counts
// for the recompute gate.
type PendingUser struct {
	UserID   string `json:"user_id"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
}

type Stats struct {
	TotalScorecards   int `json:"total_scorecards"`
	TotalFeedback     int `json:"total_feedback"`
	PendingFeedback   int `json:"pending_feedback"`
	UsersWithLearning int `json:"users_with_learning"`
}

type Store interface {
	CreateFeedback(ctx context.Context, e *FeedbackEvent) error
	GetUnappliedFeedback(ctx context.Context, userID string) ([]*FeedbackEvent, error)
	MarkFeedbackApplied(ctx context.Context, ids []uuid.UUID) error
	ListUsersWithPendingFeedback(ctx context.Context) ([]PendingUser, error)

	GetLearnedWeights(ctx context.Context, userID string) (*LearnedWeightState, error)
	SaveLearnedWeights(ctx context.Context, state *LearnedWeightState) error
	DeleteLearnedWeights(ctx context.Context, userID string) error

	SaveScorecard(ctx context.Context, rec *ScorecardRecord) error
	GetLatestScorecard(ctx context.Context, listingID uuid.UUID) (*ScorecardRecord, error)

	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}
