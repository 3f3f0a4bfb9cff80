package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/hearthside/homematch/internal/events"
	"github.com/hearthside/homematch/internal/store"
)

type FeedbackHandler struct {
	store  store.Store
	events events.Client
}

func NewFeedbackHandler(s store.Store, ev events.Client) *FeedbackHandler {
	return &FeedbackHandler{store: s, events: ev}
}

type FeedbackRequest struct {
	UserID    string                 `json:"user_id"`
	ListingID string                 `json:"listing_id"`
	Direction string                 `json:"direction"`
	Snapshot  map[string]interface{} `json:"scorecard_snapshot,omitempty"`
}

func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" || req.ListingID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and listing_id required"})
		return
	}
	direction := store.Direction(req.Direction)
	if direction != store.DirectionLike && direction != store.DirectionDislike {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be like or dislike"})
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid listing_id"})
		return
	}

	snapshot := req.Snapshot
	if snapshot == nil {
		// Fall back to the stored scorecard so learning can still attribute
		// the reaction to criteria.
		if rec, err := h.store.GetLatestScorecard(r.Context(), listingID); err == nil && rec != nil {
			snapshot = rec.Payload
		}
	}

	event := &store.FeedbackEvent{
		UserID:    req.UserID,
		ListingID: listingID,
		Direction: direction,
		Snapshot:  snapshot,
	}
	if err := h.store.CreateFeedback(r.Context(), event); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.events != nil {
		_ = h.events.Publish(r.Context(), events.SubjectFeedbackRecorded(event.ID.String()), events.FeedbackRecordedEvent{
			FeedbackID: event.ID.String(),
			UserID:     event.UserID,
			ListingID:  event.ListingID.String(),
			Direction:  string(event.Direction),
		})
	}

	writeJSON(w, http.StatusCreated, event)
}
