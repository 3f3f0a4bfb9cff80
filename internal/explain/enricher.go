package explain

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hearthside/homematch/internal/listing"
	"github.com/hearthside/homematch/internal/scoring"
)

var (
	enrichmentCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homematch_enrichment_calls_total",
		Help: "Enrichment provider calls by outcome.",
	}, []string{"outcome"})
	enrichmentCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homematch_enrichment_cache_hits_total",
		Help: "Enrichment requests served from cache.",
	})
)

// narrative is the provider's parsed output. Every field is optional; a field
// without qualifying verbatim evidence is dropped rather than trusted.
type narrative struct {
	TopPositives []narrativeHighlight `json:"top_positives"`
	Tradeoff     string               `json:"tradeoff"`
	TradeoffEv   string               `json:"tradeoff_evidence"`
	WhyNow       string               `json:"why_now"`
}

type narrativeHighlight struct {
	Criterion string `json:"criterion"`
	Text      string `json:"text"`
	Evidence  string `json:"evidence"`
}

// Enricher rewrites narrative fields on the top-N scorecards of a query using
// an LLM provider, constrained to evidence quoted verbatim from the listing
// description. It never changes a number or a tier, and every failure mode
// degrades to the deterministic narrative already on the card.
type Enricher struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
	topN     int
	cache    *narrativeCache
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. fallback may be nil.
func NewEnricher(primary, fallback Provider, timeout time.Duration, topN int, logger *slog.Logger) *Enricher {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if topN <= 0 {
		topN = 5
	}
	return &Enricher{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		topN:     topN,
		cache:    newNarrativeCache(),
		logger:   logger,
	}
}

// EnrichTop enriches the first topN cards in ranked order. cards must already
// be sorted best-first; listings maps listing id to the scored listing.
func (e *Enricher) EnrichTop(ctx context.Context, cards []*scoring.Scorecard, listings map[string]*listing.Listing) {
	if e == nil || e.primary == nil {
		return
	}
	n := e.topN
	if n > len(cards) {
		n = len(cards)
	}
	for _, card := range cards[:n] {
		l, ok := listings[card.ListingID.String()]
		if !ok || strings.TrimSpace(l.Description) == "" {
			continue
		}
		e.enrichOne(ctx, card, l)
	}
}

func (e *Enricher) enrichOne(ctx context.Context, card *scoring.Scorecard, l *listing.Listing) {
	payload := e.buildPayload(card, l)
	key := fmt.Sprintf("%x", sha256.Sum256(payload))

	if n, ok := e.cache.get(key); ok {
		enrichmentCacheHits.Inc()
		e.apply(card, l, n)
		return
	}

	prompt := buildPrompt(string(payload))
	raw, err := e.generate(ctx, prompt)
	if err != nil {
		enrichmentCalls.WithLabelValues("failed").Inc()
		e.logger.Warn("enrichment failed, keeping deterministic narrative",
			"listing_id", card.ListingID, "error", err)
		return
	}

	n, err := parseNarrative(raw)
	if err != nil {
		enrichmentCalls.WithLabelValues("malformed").Inc()
		e.logger.Warn("enrichment response unparseable, keeping deterministic narrative",
			"listing_id", card.ListingID, "error", err)
		return
	}

	enrichmentCalls.WithLabelValues("ok").Inc()
	e.cache.put(key, n)
	e.apply(card, l, n)
}

// generate tries the primary provider under the timeout, then retries once
// against the fallback.
func (e *Enricher) generate(ctx context.Context, prompt string) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	raw, err := e.primary.Generate(pctx, prompt)
	if err == nil {
		return raw, nil
	}
	if e.fallback == nil {
		return "", err
	}
	e.logger.Warn("primary enrichment provider failed, trying fallback", "error", err)

	fctx, fcancel := context.WithTimeout(ctx, e.timeout)
	defer fcancel()
	raw, ferr := e.fallback.Generate(fctx, prompt)
	if ferr != nil {
		return "", fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return raw, nil
}

// apply overwrites narrative fields only, and only where the provider quoted
// evidence that actually appears in the description.
func (e *Enricher) apply(card *scoring.Scorecard, l *listing.Listing, n *narrative) {
	applied := false

	if len(n.TopPositives) > 0 {
		byName := make(map[string]narrativeHighlight, len(n.TopPositives))
		for _, h := range n.TopPositives {
			if h.Evidence != "" && strings.Contains(l.Description, h.Evidence) {
				byName[h.Criterion] = h
			}
		}
		for i, existing := range card.TopPositives {
			if h, ok := byName[existing.Criterion]; ok && strings.TrimSpace(h.Text) != "" {
				card.TopPositives[i].Text = h.Text
				applied = true
			}
		}
	}

	if strings.TrimSpace(n.Tradeoff) != "" && n.TradeoffEv != "" &&
		strings.Contains(l.Description, n.TradeoffEv) {
		card.KeyTradeoff = n.Tradeoff
		applied = true
	}

	if strings.TrimSpace(n.WhyNow) != "" {
		card.WhyNow = n.WhyNow
		applied = true
	}

	card.Enriched = applied
}

func (e *Enricher) buildPayload(card *scoring.Scorecard, l *listing.Listing) []byte {
	type criterionLine struct {
		Name     string  `json:"name"`
		Raw      float64 `json:"raw"`
		Weighted float64 `json:"weighted"`
	}
	lines := make([]criterionLine, 0, len(card.Criteria))
	for _, c := range card.Criteria {
		lines = append(lines, criterionLine{Name: c.Name, Raw: c.Raw, Weighted: c.Weighted})
	}
	payload, _ := json.Marshal(map[string]any{
		"description":   l.Description,
		"criteria":      lines,
		"tradeoff":      card.KeyTradeoff,
		"why_now":       card.WhyNow,
		"top_positives": card.TopPositives,
	})
	return payload
}

const promptTemplate = `You are rewriting the narrative of a real-estate scorecard for a buyer.
Rules:
- For every top positive and the tradeoff, quote supporting evidence VERBATIM
  from the description in the "evidence" field. If no verbatim evidence
  exists, emit null for that field instead of inventing any.
- Do not mention scores, weights, or numbers you were not given.
- Respond with JSON only:
  {"top_positives":[{"criterion":"","text":"","evidence":""}],
   "tradeoff":"","tradeoff_evidence":"","why_now":""}

Scorecard input:
%s
`

func buildPrompt(payload string) string {
	return fmt.Sprintf(promptTemplate, payload)
}

func parseNarrative(raw string) (*narrative, error) {
	cleaned := extractJSON(raw)
	n := &narrative{}
	if err := json.Unmarshal([]byte(cleaned), n); err != nil {
		return nil, fmt.Errorf("parse enrichment response: %w", err)
	}
	return n, nil
}

// extractJSON strips markdown code fences that models like to wrap JSON in.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}
