// Package feed provides an HTTP client for the live-score feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jdals-gh/goalsentry/internal/logger"
	"github.com/jdals-gh/goalsentry/internal/models"
)

// Client fetches live match snapshots from the upstream sports-data service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// liveMatch is the wire representation returned by the feed.
type liveMatch struct {
	MatchID   int64  `json:"match_id"`
	Minute    int    `json:"minute"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	League    string `json:"league"`
	Status    string `json:"status"`
}

// NewClient creates a new feed client.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// FetchLiveMatches retrieves the current set of in-play matches. Snapshots
// failing validation are skipped, not fatal.
func (c *Client) FetchLiveMatches(ctx context.Context) ([]models.MatchState, error) {
	resp, err := c.doRequest(ctx, c.baseURL+"/matches/live")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live matches: %w", err)
	}
	defer resp.Body.Close()

	var wire []liveMatch
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode live matches: %w", err)
	}

	now := time.Now()
	matches := make([]models.MatchState, 0, len(wire))
	for _, lm := range wire {
		if lm.Status != "" && lm.Status != "in_play" {
			continue
		}
		state := models.MatchState{
			MatchID:   lm.MatchID,
			Minute:    lm.Minute,
			HomeTeam:  lm.HomeTeam,
			AwayTeam:  lm.AwayTeam,
			HomeScore: lm.HomeScore,
			AwayScore: lm.AwayScore,
			League:    lm.League,
			FetchedAt: now,
		}
		if err := state.Validate(); err != nil {
			logger.Warn("Skipping invalid match snapshot %d: %v", lm.MatchID, err)
			continue
		}
		matches = append(matches, state)
	}
	return matches, nil
}

// doRequest performs an HTTP GET with linear-backoff retry on transport errors
// and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
