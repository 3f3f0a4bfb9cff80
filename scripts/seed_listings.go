// seed_listings.go — standalone script to read a listings JSON file and submit
// it to the homematch scoring API in batches.
//
// Usage:
//
//	go run scripts/seed_listings.go -listings listings.json -api http://localhost:8700 -user alice -preset renter_wfh
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
)

type scoreRequest struct {
	UserID   string            `json:"user_id,omitempty"`
	Preset   string            `json:"preset,omitempty"`
	Listings []json.RawMessage `json:"listings"`
}

type scoreResponse struct {
	Scorecards []struct {
		ListingID    string  `json:"listing_id"`
		ScorePercent float64 `json:"score_percent"`
		Tier         string  `json:"tier"`
		WhyNow       string  `json:"why_now"`
	} `json:"scorecards"`
	Excluded []struct {
		ListingID string   `json:"listing_id"`
		Reasons   []string `json:"reasons"`
	} `json:"excluded"`
}

func main() {
	listingsPath := flag.String("listings", "listings.json", "path to listings JSON array")
	apiURL := flag.String("api", "http://localhost:8700", "homematch API base URL")
	userID := flag.String("user", "", "user_id to score for (optional)")
	preset := flag.String("preset", "", "weight preset name (optional)")
	clientID := flag.String("client", "seed", "X-Client-ID header value")
	batchSize := flag.Int("batch", 100, "listings per request")
	dryRun := flag.Bool("dry-run", false, "print listings without posting")
	flag.Parse()

	raw, err := os.ReadFile(*listingsPath)
	if err != nil {
		log.Fatalf("read listings: %v", err)
	}

	var listings []json.RawMessage
	if err := json.Unmarshal(raw, &listings); err != nil {
		log.Fatalf("parse listings: %v", err)
	}
	log.Printf("parsed %d listings from %s", len(listings), *listingsPath)

	if *dryRun {
		for i, l := range listings {
			var peek struct {
				ID           string  `json:"id"`
				Neighborhood string  `json:"neighborhood"`
				Price        float64 `json:"price"`
			}
			_ = json.Unmarshal(l, &peek)
			fmt.Printf("[%d] %s (%s, %.0f)\n", i+1, peek.ID, peek.Neighborhood, peek.Price)
		}
		return
	}

	client := &http.Client{}
	scored, excluded := 0, 0
	for start := 0; start < len(listings); start += *batchSize {
		end := start + *batchSize
		if end > len(listings) {
			end = len(listings)
		}

		body, _ := json.Marshal(scoreRequest{
			UserID:   *userID,
			Preset:   *preset,
			Listings: listings[start:end],
		})
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/score", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Client-ID", *clientID)

		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("post batch: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			log.Fatalf("post batch: status %d", resp.StatusCode)
		}

		var out scoreResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			resp.Body.Close()
			log.Fatalf("decode response: %v", err)
		}
		resp.Body.Close()

		for _, c := range out.Scorecards {
			fmt.Printf("%s  %5.1f%%  %-12s %s\n", c.ListingID, c.ScorePercent, c.Tier, c.WhyNow)
		}
		for _, e := range out.Excluded {
			fmt.Printf("%s  excluded: %v\n", e.ListingID, e.Reasons)
		}
		scored += len(out.Scorecards)
		excluded += len(out.Excluded)
	}

	log.Printf("done: %d scored, %d excluded", scored, excluded)
}
