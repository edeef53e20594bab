package estimator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jdals-gh/goalsentry/internal/models"
)

func testState() models.MatchState {
	return models.MatchState{
		MatchID:   12345,
		Minute:    60,
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		HomeScore: 1,
		AwayScore: 1,
	}
}

func estimateServer(t *testing.T, resp estimateResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/estimate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var state models.MatchState
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEstimate(t *testing.T) {
	srv := estimateServer(t, estimateResponse{
		Probabilities: map[string]float64{"1m": 0.15, "5m": 0.35, "15m": 0.72},
		Confidence:    0.8,
	})

	c := NewMLClient(srv.URL, 5*time.Second)
	est, err := c.Estimate(context.Background(), testState())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if est.Source != "ml" {
		t.Errorf("source = %q, want %q", est.Source, "ml")
	}
	if got := est.Probabilities[models.Horizon15Min]; got != 0.72 {
		t.Errorf("15min probability = %f, want 0.72", got)
	}
	if est.Confidence != 0.8 {
		t.Errorf("confidence = %f, want 0.8", est.Confidence)
	}
	if err := est.Validate(); err != nil {
		t.Errorf("estimate failed validation: %v", err)
	}
}

func TestEstimate_ClampsOutOfRangeValues(t *testing.T) {
	srv := estimateServer(t, estimateResponse{
		Probabilities: map[string]float64{"1m": -0.5, "5m": 1.8, "15m": 0.5},
		Confidence:    2.0,
	})

	c := NewHistoricalClient(srv.URL, 5*time.Second)
	est, err := c.Estimate(context.Background(), testState())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if got := est.Probabilities[models.Horizon1Min]; got != 0 {
		t.Errorf("negative probability clamped to %f, want 0", got)
	}
	if got := est.Probabilities[models.Horizon5Min]; got != 1 {
		t.Errorf("excessive probability clamped to %f, want 1", got)
	}
	if est.Confidence != 1 {
		t.Errorf("excessive confidence clamped to %f, want 1", est.Confidence)
	}
}

func TestEstimate_MissingHorizon(t *testing.T) {
	srv := estimateServer(t, estimateResponse{
		Probabilities: map[string]float64{"1m": 0.1},
		Confidence:    0.8,
	})

	c := NewMLClient(srv.URL, 5*time.Second)
	if _, err := c.Estimate(context.Background(), testState()); err == nil {
		t.Error("expected error for response missing horizons")
	}
}

func TestEstimate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewMLClient(srv.URL, 5*time.Second)
	if _, err := c.Estimate(context.Background(), testState()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestEstimate_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c := NewMLClient(srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Estimate(ctx, testState()); err == nil {
		t.Error("expected error when the context deadline elapses")
	}
}
