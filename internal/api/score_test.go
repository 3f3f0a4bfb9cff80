package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/homematch/internal/config"
	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/engine"
	"github.com/hearthside/homematch/internal/events"
	"github.com/hearthside/homematch/internal/learning"
	"github.com/hearthside/homematch/internal/listing"
	"github.com/hearthside/homematch/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore is an in-memory store.Store for handler tests.
type mockStore struct {
	feedback   []*store.FeedbackEvent
	weights    map[string]*store.LearnedWeightState
	scorecards []*store.ScorecardRecord
	stats      store.Stats
}

func newMockStore() *mockStore {
	return &mockStore{weights: make(map[string]*store.LearnedWeightState)}
}

func (m *mockStore) CreateFeedback(_ context.Context, e *store.FeedbackEvent) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.feedback = append(m.feedback, e)
	return nil
}

func (m *mockStore) GetUnappliedFeedback(_ context.Context, userID string) ([]*store.FeedbackEvent, error) {
	var out []*store.FeedbackEvent
	for _, e := range m.feedback {
		if e.UserID == userID && e.AppliedAt == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) MarkFeedbackApplied(_ context.Context, ids []uuid.UUID) error {
	now := time.Now()
	for _, e := range m.feedback {
		for _, id := range ids {
			if e.ID == id {
				e.AppliedAt = &now
			}
		}
	}
	return nil
}

func (m *mockStore) ListUsersWithPendingFeedback(_ context.Context) ([]store.PendingUser, error) {
	return nil, nil
}

func (m *mockStore) GetLearnedWeights(_ context.Context, userID string) (*store.LearnedWeightState, error) {
	return m.weights[userID], nil
}

func (m *mockStore) SaveLearnedWeights(_ context.Context, state *store.LearnedWeightState) error {
	m.weights[state.UserID] = state
	return nil
}

func (m *mockStore) DeleteLearnedWeights(_ context.Context, userID string) error {
	delete(m.weights, userID)
	return nil
}

func (m *mockStore) SaveScorecard(_ context.Context, rec *store.ScorecardRecord) error {
	m.scorecards = append(m.scorecards, rec)
	return nil
}

func (m *mockStore) GetLatestScorecard(_ context.Context, listingID uuid.UUID) (*store.ScorecardRecord, error) {
	var latest *store.ScorecardRecord
	for _, rec := range m.scorecards {
		if rec.ListingID != listingID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	return latest, nil
}

func (m *mockStore) GetStats(_ context.Context) (*store.Stats, error) { return &m.stats, nil }

func (m *mockStore) Close() error { return nil }

// fakeEvents records published subjects.
type fakeEvents struct {
	published []string
}

func (f *fakeEvents) Publish(_ context.Context, subject string, data interface{}) error {
	f.published = append(f.published, subject)
	return nil
}

func (f *fakeEvents) Subscribe(string, func(string, []byte)) error { return nil }
func (f *fakeEvents) Close()                                       {}

func testCriteria() *criteria.Config {
	return &criteria.Config{
		Mode: criteria.ModeRental,
		HardFilters: criteria.HardFilters{
			PriceMax: 5000,
		},
		Criteria: []criteria.Criterion{
			{Name: "light", Weight: 15, Rule: criteria.Rule{Kind: criteria.RuleKeyword, Group: "light"}},
			{Name: "outdoor", Weight: 10, Rule: criteria.Rule{Kind: criteria.RuleKeyword, Group: "outdoor"}},
		},
		SignalGroups: map[string]criteria.SignalGroup{
			"light":   {Multiplier: 2},
			"outdoor": {Multiplier: 2},
		},
		Presets: map[string]map[string]float64{
			"light_lover": {"light": 25},
		},
		Penalties:    criteria.PenaltyConfig{ClampAtZero: true},
		Tiers:        criteria.DefaultTiers(),
		AlertPercent: 85,
	}
}

func newTestRouter(t *testing.T, s store.Store, ev *fakeEvents) http.Handler {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	learner := learning.NewLearner(s, learning.DefaultParams(), discardLogger())
	var evc events.Client
	if ev != nil {
		evc = ev
	}
	return NewRouter(s, evc, testCriteria(), nil, learner, cfg, discardLogger())
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Client-ID", "test")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func scoreBody(listings ...*listing.Listing) map[string]interface{} {
	return map[string]interface{}{"listings": listings}
}

func keywordListing(price float64, lightHits, outdoorHits int) *listing.Listing {
	hits := map[string][]string{"light": {}, "outdoor": {}}
	for i := 0; i < lightHits; i++ {
		hits["light"] = append(hits["light"], "bright")
	}
	for i := 0; i < outdoorHits; i++ {
		hits["outdoor"] = append(hits["outdoor"], "balcony")
	}
	return &listing.Listing{
		ID:       uuid.New(),
		Price:    price,
		Beds:     2,
		Baths:    1,
		Status:   listing.StatusActive,
		ListedAt: time.Now().Add(-48 * time.Hour),
		Signals:  listing.SignalBundle{KeywordHits: hits},
	}
}

func TestScoreEndpoint(t *testing.T) {
	s := newMockStore()
	ev := &fakeEvents{}
	router := newTestRouter(t, s, ev)

	good := keywordListing(4800, 4, 5)
	excluded := keywordListing(5200, 5, 5)

	w := doRequest(t, router, "POST", "/api/v1/score", scoreBody(good, excluded))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var out engine.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Scorecards) != 1 || len(out.Excluded) != 1 {
		t.Fatalf("got %d scorecards, %d excluded", len(out.Scorecards), len(out.Excluded))
	}
	if out.Scorecards[0].ScorePercent != 88 {
		t.Errorf("score percent = %f, want 88", out.Scorecards[0].ScorePercent)
	}

	// The scorecard was persisted and both events published: created plus the
	// alert, since 88 clears the 85 threshold.
	if len(s.scorecards) != 1 {
		t.Errorf("persisted %d scorecards, want 1", len(s.scorecards))
	}
	if len(ev.published) != 2 {
		t.Errorf("published %v, want scorecard.created and alert.triggered", ev.published)
	}
}

func TestScoreEndpointValidation(t *testing.T) {
	router := newTestRouter(t, newMockStore(), nil)

	t.Run("empty listings", func(t *testing.T) {
		w := doRequest(t, router, "POST", "/api/v1/score", map[string]interface{}{"listings": []int{}})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown preset", func(t *testing.T) {
		body := scoreBody(keywordListing(4000, 1, 1))
		body["preset"] = "nope"
		w := doRequest(t, router, "POST", "/api/v1/score", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/score", bytes.NewBufferString("{"))
		req.Header.Set("X-Client-ID", "test")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestScoreEndpointUsesLearnedWeights(t *testing.T) {
	s := newMockStore()
	s.weights["alice"] = &store.LearnedWeightState{
		UserID:      "alice",
		Multipliers: map[string]float64{"light": 2.0},
	}
	router := newTestRouter(t, s, nil)

	body := scoreBody(keywordListing(4000, 5, 0))
	body["user_id"] = "alice"
	w := doRequest(t, router, "POST", "/api/v1/score", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var out engine.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// light weight doubled to 30: achievable 40, points 30 -> 75%.
	card := out.Scorecards[0]
	if card.TotalAchievable != 40 {
		t.Errorf("total achievable = %f, want 40", card.TotalAchievable)
	}
	if card.ScorePercent != 75 {
		t.Errorf("score percent = %f, want 75", card.ScorePercent)
	}
	if card.UserID != "alice" {
		t.Errorf("user id = %q, want alice", card.UserID)
	}
}

func TestScorecardEndpoints(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(t, s, nil)

	l := keywordListing(4800, 4, 5)
	doRequest(t, router, "POST", "/api/v1/score", scoreBody(l))

	t.Run("get latest", func(t *testing.T) {
		w := doRequest(t, router, "GET", "/api/v1/scorecards/"+l.ID.String(), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var rec store.ScorecardRecord
		if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.ListingID != l.ID {
			t.Error("wrong scorecard returned")
		}
	})

	t.Run("explain", func(t *testing.T) {
		w := doRequest(t, router, "GET", "/api/v1/scorecards/"+l.ID.String()+"/explain", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := body["per_criterion_contributions"]; !ok {
			t.Error("explanation missing per-criterion breakdown")
		}
		if _, ok := body["why_now"]; !ok {
			t.Error("explanation missing why_now")
		}
	})

	t.Run("unknown listing", func(t *testing.T) {
		w := doRequest(t, router, "GET", "/api/v1/scorecards/"+uuid.NewString(), nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doRequest(t, router, "GET", "/api/v1/scorecards/not-a-uuid", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
