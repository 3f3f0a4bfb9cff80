package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthside/homematch/internal/learning"
	"github.com/hearthside/homematch/internal/store"
)

type WeightsHandler struct {
	store   store.Store
	learner *learning.Learner
}

func NewWeightsHandler(s store.Store, l *learning.Learner) *WeightsHandler {
	return &WeightsHandler{store: s, learner: l}
}

func (h *WeightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	state, err := h.store.GetLearnedWeights(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if state == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id": userID,
			"summary": "no learned adjustments yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      state.UserID,
		"multipliers":  state.Multipliers,
		"update_count": state.UpdateCount,
		"updated_at":   state.UpdatedAt,
		"summary":      learning.Describe(state),
	})
}

func (h *WeightsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	state, applied, err := h.learner.Recompute(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	resp := map[string]interface{}{
		"user_id": userID,
		"applied": applied,
	}
	if state != nil {
		resp["multipliers"] = state.Multipliers
		resp["update_count"] = state.UpdateCount
		resp["summary"] = learning.Describe(state)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WeightsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.learner.Reset(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "reset"})
}
