package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthside/homematch/internal/config"
	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/events"
	"github.com/hearthside/homematch/internal/explain"
	"github.com/hearthside/homematch/internal/learning"
	"github.com/hearthside/homematch/internal/store"
)

func NewRouter(s store.Store, ev events.Client, crit *criteria.Config, enricher *explain.Enricher, learner *learning.Learner, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(120))

	score := NewScoreHandler(s, ev, crit, enricher, cfg, logger)
	scorecards := NewScorecardsHandler(s)
	feedback := NewFeedbackHandler(s, ev)
	weights := NewWeightsHandler(s, learner)
	admin := NewAdminHandler(s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ClientIDMiddleware)

		// Scoring is the expensive path; cap it well below the global limit.
		r.With(RateLimitMiddleware(20)).Post("/score", score.Score)
		r.Get("/scorecards/{listing_id}", scorecards.Get)
		r.Get("/scorecards/{listing_id}/explain", scorecards.Explain)
		r.Post("/feedback", feedback.Create)

		r.Get("/users/{user_id}/weights", weights.Get)
		r.Post("/users/{user_id}/recompute", weights.Recompute)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Get("/stats", admin.Stats)
			r.Post("/users/{user_id}/weights/reset", weights.Reset)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
