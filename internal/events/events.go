package events

import "time"

const StreamName = "HOMEMATCH_EVENTS"

func SubjectScorecardCreated(listingID string) string {
	return "homematch.scorecard." + listingID + ".created"
}

func SubjectAlertTriggered(listingID string) string {
	return "homematch.alert." + listingID + ".triggered"
}

func SubjectFeedbackRecorded(feedbackID string) string {
	return "homematch.feedback." + feedbackID + ".recorded"
}

func SubjectWeightsRecomputed(userID string) string {
	return "homematch.weights." + userID + ".recomputed"
}

// ScorecardCreatedEvent announces a stored scorecard.
type ScorecardCreatedEvent struct {
	ListingID    string  `json:"listing_id"`
	UserID       string  `json:"user_id,omitempty"`
	ScorePercent float64 `json:"score_percent"`
	Tier         string  `json:"tier"`
}

// AlertTriggeredEvent fires when a scorecard clears the alert threshold; the
// alerting collaborator handles delivery.
type AlertTriggeredEvent struct {
	ListingID    string    `json:"listing_id"`
	UserID       string    `json:"user_id,omitempty"`
	ScorePercent float64   `json:"score_percent"`
	Tier         string    `json:"tier"`
	WhyNow       string    `json:"why_now,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type FeedbackRecordedEvent struct {
	FeedbackID string `json:"feedback_id"`
	UserID     string `json:"user_id"`
	ListingID  string `json:"listing_id"`
	Direction  string `json:"direction"`
}

type WeightsRecomputedEvent struct {
	UserID      string             `json:"user_id"`
	UpdateCount int                `json:"update_count"`
	Multipliers map[string]float64 `json:"multipliers"`
}
