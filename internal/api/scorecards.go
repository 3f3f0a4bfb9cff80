package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hearthside/homematch/internal/store"
)

type ScorecardsHandler struct {
	store store.Store
}

func NewScorecardsHandler(s store.Store) *ScorecardsHandler {
	return &ScorecardsHandler{store: s}
}

func (h *ScorecardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Explain returns just the decision breakdown of the latest scorecard:
// per-criterion contributions, penalties, and the narrative fields.
func (h *ScorecardsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	explanation := map[string]interface{}{
		"listing_id":    rec.ListingID.String(),
		"score_percent": rec.ScorePercent,
		"tier":          rec.Tier,
	}
	for _, key := range []string{
		"total_points",
		"total_achievable_points",
		"per_criterion_contributions",
		"penalties",
		"top_positives",
		"key_tradeoff",
		"why_now",
		"enriched",
	} {
		if v, ok := rec.Payload[key]; ok {
			explanation[key] = v
		}
	}
	writeJSON(w, http.StatusOK, explanation)
}

func (h *ScorecardsHandler) lookup(w http.ResponseWriter, r *http.Request) (*store.ScorecardRecord, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "listing_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid listing id"})
		return nil, false
	}
	rec, err := h.store.GetLatestScorecard(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scorecard for listing"})
		return nil, false
	}
	return rec, true
}
