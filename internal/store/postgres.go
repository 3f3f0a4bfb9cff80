package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateFeedback(ctx context.Context, e *FeedbackEvent) error {
	snapshotJSON, _ := json.Marshal(e.Snapshot)
	return s.pool.QueryRow(ctx, `
		INSERT INTO feedback_events (user_id, listing_id, direction, scorecard_snapshot)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.UserID, e.ListingID, e.Direction, snapshotJSON,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *PostgresStore) GetUnappliedFeedback(ctx context.Context, userID string) ([]*FeedbackEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, listing_id, direction, scorecard_snapshot, created_at, applied_at
		FROM feedback_events
		WHERE user_id = $1 AND applied_at IS NULL
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*FeedbackEvent
	for rows.Next() {
		e := &FeedbackEvent{}
		var snapshotJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.ListingID, &e.Direction, &snapshotJSON, &e.CreatedAt, &e.AppliedAt); err != nil {
			return nil, err
		}
		if snapshotJSON != nil {
			_ = json.Unmarshal(snapshotJSON, &e.Snapshot)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) MarkFeedbackApplied(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE feedback_events SET applied_at = now() WHERE id = ANY($1)`, ids)
	return err
}

func (s *PostgresStore) ListUsersWithPendingFeedback(ctx context.Context) ([]PendingUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id,
			COUNT(*) FILTER (WHERE direction = 'like'),
			COUNT(*) FILTER (WHERE direction = 'dislike')
		FROM feedback_events
		WHERE applied_at IS NULL
		GROUP BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []PendingUser
	for rows.Next() {
		var u PendingUser
		if err := rows.Scan(&u.UserID, &u.Likes, &u.Dislikes); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) GetLearnedWeights(ctx context.Context, userID string) (*LearnedWeightState, error) {
	state := &LearnedWeightState{UserID: userID}
	var multipliersJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT multipliers, update_count, updated_at
		FROM learned_weights WHERE user_id = $1`, userID,
	).Scan(&multipliersJSON, &state.UpdateCount, &state.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if multipliersJSON != nil {
		_ = json.Unmarshal(multipliersJSON, &state.Multipliers)
	}
	return state, nil
}

func (s *PostgresStore) SaveLearnedWeights(ctx context.Context, state *LearnedWeightState) error {
	multipliersJSON, _ := json.Marshal(state.Multipliers)
	return s.pool.QueryRow(ctx, `
		INSERT INTO learned_weights (user_id, multipliers, update_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET multipliers = EXCLUDED.multipliers,
			update_count = EXCLUDED.update_count,
			updated_at = now()
		RETURNING updated_at`,
		state.UserID, multipliersJSON, state.UpdateCount,
	).Scan(&state.UpdatedAt)
}

func (s *PostgresStore) DeleteLearnedWeights(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM learned_weights WHERE user_id = $1`, userID)
	return err
}

func (s *PostgresStore) SaveScorecard(ctx context.Context, rec *ScorecardRecord) error {
	payloadJSON, _ := json.Marshal(rec.Payload)
	return s.pool.QueryRow(ctx, `
		INSERT INTO scorecards (id, listing_id, user_id, score_percent, tier, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		rec.ID, rec.ListingID, rec.UserID, rec.ScorePercent, rec.Tier, payloadJSON,
	).Scan(&rec.CreatedAt)
}

func (s *PostgresStore) GetLatestScorecard(ctx context.Context, listingID uuid.UUID) (*ScorecardRecord, error) {
	rec := &ScorecardRecord{}
	var payloadJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, listing_id, user_id, score_percent, tier, payload, created_at
		FROM scorecards WHERE listing_id = $1
		ORDER BY created_at DESC LIMIT 1`, listingID,
	).Scan(&rec.ID, &rec.ListingID, &rec.UserID, &rec.ScorePercent, &rec.Tier, &payloadJSON, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if payloadJSON != nil {
		_ = json.Unmarshal(payloadJSON, &rec.Payload)
	}
	return rec, nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM scorecards),
			(SELECT COUNT(*) FROM feedback_events),
			(SELECT COUNT(*) FROM feedback_events WHERE applied_at IS NULL),
			(SELECT COUNT(*) FROM learned_weights)`,
	).Scan(&stats.TotalScorecards, &stats.TotalFeedback, &stats.PendingFeedback, &stats.UsersWithLearning)
	return stats, err
}
