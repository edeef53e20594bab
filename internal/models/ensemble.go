package models

import (
	"errors"
	"fmt"
	"time"
)

// ProbabilityEstimate is the output of a single estimator source: one goal
// probability per horizon plus a scalar confidence, all in [0,1].
type ProbabilityEstimate struct {
	Probabilities map[Horizon]float64 `json:"probabilities"`
	Confidence    float64             `json:"confidence"`
	Source        string              `json:"source,omitempty"`
}

// Validate checks estimate field constraints.
func (p *ProbabilityEstimate) Validate() error {
	if p.Confidence < 0.0 || p.Confidence > 1.0 {
		return errors.New("confidence must be between 0.0 and 1.0")
	}
	for _, h := range Horizons() {
		prob, ok := p.Probabilities[h]
		if !ok {
			return fmt.Errorf("missing probability for horizon %s", h)
		}
		if prob < 0.0 || prob > 1.0 {
			return fmt.Errorf("probability for horizon %s must be between 0.0 and 1.0", h)
		}
	}
	return nil
}

// Action is the discrete recommendation derived from an ensemble result.
type Action string

const (
	ActionBet       Action = "BET"
	ActionBetNoGoal Action = "BET_NO_GOAL"
	ActionConsider  Action = "CONSIDER"
	ActionHold      Action = "HOLD"
)

// Urgency qualifies how quickly a bet suggestion should be acted on.
type Urgency string

const (
	UrgencyImmediate Urgency = "IMMEDIATE"
	UrgencyNormal    Urgency = "NORMAL"
)

// BetSuggestion is a per-horizon suggestion attached to a recommendation.
type BetSuggestion struct {
	Horizon     Horizon `json:"horizon"`
	Probability float64 `json:"probability"`
	Urgency     Urgency `json:"urgency"`
}

// AvoidBet marks a horizon whose probability fell in the uncertain band.
type AvoidBet struct {
	Horizon     Horizon `json:"horizon"`
	Probability float64 `json:"probability"`
}

// Recommendation maps ensemble probabilities and confidence to a discrete action.
type Recommendation struct {
	Action      Action          `json:"action"`
	Reason      string          `json:"reason"`
	Suggestions []BetSuggestion `json:"suggestions,omitempty"`
	AvoidBets   []AvoidBet      `json:"avoid_bets,omitempty"`
}

// EnsembleResult is the weighted combination of the ML and historical sources
// for one match snapshot. Written once, never mutated.
type EnsembleResult struct {
	MatchID        int64               `json:"match_id"`
	Minute         int                 `json:"minute"`
	HomeTeam       string              `json:"home_team"`
	AwayTeam       string              `json:"away_team"`
	HomeScore      int                 `json:"home_score"`
	AwayScore      int                 `json:"away_score"`
	Probabilities  map[Horizon]float64 `json:"probabilities"`
	Confidence     float64             `json:"confidence"`
	Degraded       bool                `json:"degraded"`
	Recommendation Recommendation      `json:"recommendation"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Prob returns the ensemble probability for h, or 0 if absent.
func (r *EnsembleResult) Prob(h Horizon) float64 {
	return r.Probabilities[h]
}
