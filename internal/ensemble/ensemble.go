// Package ensemble merges the ML and historical probability sources into a
// single ranked result and maps it to a discrete recommendation.
package ensemble

import (
	"fmt"
	"math"
	"time"

	"github.com/jdals-gh/goalsentry/internal/models"
)

// Weights holds the source weights for the ensemble. They must sum to 1.
type Weights struct {
	ML         float64
	Historical float64
}

func DefaultWeights() Weights {
	return Weights{ML: 0.7, Historical: 0.3}
}

// Valid checks the weight invariant.
func (w Weights) Valid() error {
	if w.ML < 0 || w.ML > 1 || w.Historical < 0 || w.Historical > 1 {
		return fmt.Errorf("weights must be in [0,1], got ml=%.4f historical=%.4f", w.ML, w.Historical)
	}
	if sum := w.ML + w.Historical; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Neutral returns the substitute estimate used when a source failed:
// 0.5 per horizon with zero confidence, so the result never looks actionable.
func Neutral() models.ProbabilityEstimate {
	probs := make(map[models.Horizon]float64, len(models.Horizons()))
	for _, h := range models.Horizons() {
		probs[h] = 0.5
	}
	return models.ProbabilityEstimate{Probabilities: probs, Confidence: 0.0}
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

// Combine merges the two source estimates for one match snapshot. A nil
// estimate means that source failed or timed out; it is replaced by the
// neutral substitute and the result is flagged Degraded so downstream logic
// can refuse to act on it. Out-of-range source values are clamped, never
// propagated as fatal.
func Combine(state models.MatchState, ml, historical *models.ProbabilityEstimate, w Weights, now time.Time) models.EnsembleResult {
	if err := w.Valid(); err != nil {
		w = DefaultWeights()
	}

	degraded := false
	if ml == nil {
		n := Neutral()
		ml = &n
		degraded = true
	}
	if historical == nil {
		n := Neutral()
		historical = &n
		degraded = true
	}

	probs := make(map[models.Horizon]float64, len(models.Horizons()))
	for _, h := range models.Horizons() {
		mlProb := clamp01(ml.Probabilities[h])
		histProb := clamp01(historical.Probabilities[h])
		probs[h] = clamp01(mlProb*w.ML + histProb*w.Historical)
	}

	confidence := clamp01(clamp01(ml.Confidence)*w.ML + clamp01(historical.Confidence)*w.Historical)

	return models.EnsembleResult{
		MatchID:       state.MatchID,
		Minute:        state.Minute,
		HomeTeam:      state.HomeTeam,
		AwayTeam:      state.AwayTeam,
		HomeScore:     state.HomeScore,
		AwayScore:     state.AwayScore,
		Probabilities: probs,
		Confidence:    confidence,
		Degraded:      degraded,
		CreatedAt:     now,
	}
}
