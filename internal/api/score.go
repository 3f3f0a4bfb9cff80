package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthside/homematch/internal/config"
	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/engine"
	"github.com/hearthside/homematch/internal/events"
	"github.com/hearthside/homematch/internal/explain"
	"github.com/hearthside/homematch/internal/listing"
	"github.com/hearthside/homematch/internal/scoring"
	"github.com/hearthside/homematch/internal/store"
)

const maxBatchSize = 500

type ScoreHandler struct {
	store    store.Store
	events   events.Client
	crit     *criteria.Config
	enricher *explain.Enricher
	composer *explain.Composer
	workers  int
	logger   *slog.Logger
}

func NewScoreHandler(s store.Store, ev events.Client, crit *criteria.Config, enricher *explain.Enricher, cfg *config.Config, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{
		store:    s,
		events:   ev,
		crit:     crit,
		enricher: enricher,
		composer: explain.NewComposer(cfg.StaleAfter()),
		workers:  cfg.Scoring.Workers,
		logger:   logger,
	}
}

type ScoreRequest struct {
	UserID   string             `json:"user_id,omitempty"`
	Preset   string             `json:"preset,omitempty"`
	Listings []*listing.Listing `json:"listings"`
}

func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Listings) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "listings required"})
		return
	}
	if len(req.Listings) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch too large"})
		return
	}

	var learned map[string]float64
	if req.UserID != "" {
		state, err := h.store.GetLearnedWeights(r.Context(), req.UserID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if state != nil {
			learned = state.Multipliers
		}
	}

	resolved, err := criteria.Resolve(h.crit, req.Preset, learned)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	eng := engine.New(h.crit, resolved, h.composer, h.workers, h.logger)
	outcome := eng.Run(r.Context(), req.Listings)

	for _, card := range outcome.Scorecards {
		card.UserID = req.UserID
		card.Preset = req.Preset
	}

	if h.enricher != nil && len(outcome.Scorecards) > 0 {
		byID := make(map[string]*listing.Listing, len(req.Listings))
		for _, l := range req.Listings {
			byID[l.ID.String()] = l
		}
		h.enricher.EnrichTop(r.Context(), outcome.Scorecards, byID)
	}

	for _, card := range outcome.Scorecards {
		h.persistAndAnnounce(r, card)
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *ScoreHandler) persistAndAnnounce(r *http.Request, card *scoring.Scorecard) {
	rec := &store.ScorecardRecord{
		ID:           card.ID,
		ListingID:    card.ListingID,
		UserID:       card.UserID,
		ScorePercent: card.ScorePercent,
		Tier:         card.Tier,
		Payload:      cardPayload(card),
		CreatedAt:    card.CreatedAt,
	}
	if err := h.store.SaveScorecard(r.Context(), rec); err != nil {
		h.logger.Error("save scorecard failed", "listing_id", card.ListingID, "error", err)
	}

	if h.events == nil {
		return
	}
	_ = h.events.Publish(r.Context(), events.SubjectScorecardCreated(card.ListingID.String()), events.ScorecardCreatedEvent{
		ListingID:    card.ListingID.String(),
		UserID:       card.UserID,
		ScorePercent: card.ScorePercent,
		Tier:         card.Tier,
	})
	if h.crit.AlertPercent > 0 && card.ScorePercent >= h.crit.AlertPercent {
		_ = h.events.Publish(r.Context(), events.SubjectAlertTriggered(card.ListingID.String()), events.AlertTriggeredEvent{
			ListingID:    card.ListingID.String(),
			UserID:       card.UserID,
			ScorePercent: card.ScorePercent,
			Tier:         card.Tier,
			WhyNow:       card.WhyNow,
			Timestamp:    time.Now().UTC(),
		})
	}
}

// cardPayload round-trips the scorecard through JSON so the stored audit copy
// matches what the API returned, field names included.
func cardPayload(card *scoring.Scorecard) map[string]interface{} {
	raw, err := json.Marshal(card)
	if err != nil {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
