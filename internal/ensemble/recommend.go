package ensemble

import (
	"github.com/jdals-gh/goalsentry/internal/models"
)

// Thresholds holds the confidence tiers and probability bands driving the
// recommendation decision table.
type Thresholds struct {
	HighConfidence   float64
	MediumConfidence float64
	HighProb         float64
	LowProb          float64
	UncertainLow     float64
	UncertainHigh    float64
	ConsiderProb     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighConfidence:   0.6,
		MediumConfidence: 0.4,
		HighProb:         0.7,
		LowProb:          0.3,
		UncertainLow:     0.4,
		UncertainHigh:    0.6,
		ConsiderProb:     0.8,
	}
}

// Resolve maps an ensemble result to a discrete recommendation. The 15-minute
// horizon is the primary signal; the 1-minute horizon drives urgency flags.
// Pure function: no side effects, no error conditions.
func Resolve(res models.EnsembleResult, t Thresholds) models.Recommendation {
	prob15 := res.Prob(models.Horizon15Min)
	prob1 := res.Prob(models.Horizon1Min)

	var rec models.Recommendation

	switch {
	case res.Confidence >= t.HighConfidence:
		switch {
		case prob15 >= t.HighProb:
			rec.Action = models.ActionBet
			rec.Reason = "high-confidence goal expected"
			rec.Suggestions = append(rec.Suggestions, models.BetSuggestion{
				Horizon:     models.Horizon15Min,
				Probability: prob15,
				Urgency:     models.UrgencyNormal,
			})
		case prob15 <= t.LowProb:
			rec.Action = models.ActionBetNoGoal
			rec.Reason = "high-confidence no-goal expected"
		default:
			rec.Action = models.ActionHold
			rec.Reason = "uncertain within high-confidence band"
		}
		// The 1-minute signal attaches regardless of the primary action.
		if prob1 >= t.HighProb {
			rec.Suggestions = append(rec.Suggestions, models.BetSuggestion{
				Horizon:     models.Horizon1Min,
				Probability: prob1,
				Urgency:     models.UrgencyImmediate,
			})
		}

	case res.Confidence >= t.MediumConfidence:
		if prob15 >= t.ConsiderProb {
			rec.Action = models.ActionConsider
			rec.Reason = "strong signal at medium confidence, smaller stake suggested"
			rec.Suggestions = append(rec.Suggestions, models.BetSuggestion{
				Horizon:     models.Horizon15Min,
				Probability: prob15,
				Urgency:     models.UrgencyNormal,
			})
		} else {
			rec.Action = models.ActionHold
			rec.Reason = "medium confidence, signal not strong enough"
		}

	default:
		rec.Action = models.ActionHold
		rec.Reason = "low confidence, avoid betting"
	}

	for _, h := range models.Horizons() {
		p := res.Prob(h)
		if p >= t.UncertainLow && p <= t.UncertainHigh {
			rec.AvoidBets = append(rec.AvoidBets, models.AvoidBet{Horizon: h, Probability: p})
		}
	}

	return rec
}
