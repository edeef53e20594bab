// Package estimator provides HTTP adapters for the two probability sources:
// the model-based estimator and the historical-statistics estimator.
package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jdals-gh/goalsentry/internal/models"
)

// Client calls one probability-estimation service over HTTP.
type Client struct {
	baseURL    string
	source     string
	httpClient *http.Client
}

// estimateResponse is the wire representation returned by both services.
type estimateResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
	Confidence    float64            `json:"confidence"`
}

// NewMLClient creates a client for the model-based estimator service.
func NewMLClient(baseURL string, timeout time.Duration) *Client {
	return newClient(baseURL, "ml", timeout)
}

// NewHistoricalClient creates a client for the historical-statistics estimator service.
func NewHistoricalClient(baseURL string, timeout time.Duration) *Client {
	return newClient(baseURL, "historical", timeout)
}

func newClient(baseURL, source string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		source:     source,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Estimate posts the match state and returns the per-horizon probabilities.
// Out-of-range values from the service are clamped at this boundary so bad
// estimator output never propagates.
func (c *Client) Estimate(ctx context.Context, state models.MatchState) (models.ProbabilityEstimate, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return models.ProbabilityEstimate{}, fmt.Errorf("failed to marshal match state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/estimate", bytes.NewReader(body))
	if err != nil {
		return models.ProbabilityEstimate{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ProbabilityEstimate{}, fmt.Errorf("%s estimator request failed: %w", c.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ProbabilityEstimate{}, fmt.Errorf("%s estimator returned status %d", c.source, resp.StatusCode)
	}

	var wire estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return models.ProbabilityEstimate{}, fmt.Errorf("failed to decode %s estimate: %w", c.source, err)
	}

	est := models.ProbabilityEstimate{
		Probabilities: make(map[models.Horizon]float64, len(models.Horizons())),
		Confidence:    clamp01(wire.Confidence),
		Source:        c.source,
	}
	for _, h := range models.Horizons() {
		prob, ok := wire.Probabilities[string(h)]
		if !ok {
			return models.ProbabilityEstimate{}, fmt.Errorf("%s estimate missing horizon %s", c.source, h)
		}
		est.Probabilities[h] = clamp01(prob)
	}
	return est, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
