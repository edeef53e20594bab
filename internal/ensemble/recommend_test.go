package ensemble

import (
	"testing"

	"github.com/jdals-gh/goalsentry/internal/models"
)

func result(p1, p5, p15, confidence float64) models.EnsembleResult {
	return models.EnsembleResult{
		MatchID: 12345,
		Minute:  60,
		Probabilities: map[models.Horizon]float64{
			models.Horizon1Min:  p1,
			models.Horizon5Min:  p5,
			models.Horizon15Min: p15,
		},
		Confidence: confidence,
	}
}

func TestResolve_DecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		res        models.EnsembleResult
		wantAction models.Action
	}{
		{
			// Worked scenario: prob 0.72, confidence 0.74 → BET.
			name:       "high confidence high probability",
			res:        result(0.2, 0.35, 0.72, 0.74),
			wantAction: models.ActionBet,
		},
		{
			name:       "high confidence low probability",
			res:        result(0.05, 0.1, 0.25, 0.8),
			wantAction: models.ActionBetNoGoal,
		},
		{
			name:       "high confidence uncertain probability",
			res:        result(0.1, 0.3, 0.55, 0.8),
			wantAction: models.ActionHold,
		},
		{
			// Minute-80 scenario: confidence 0.5 is medium tier, which
			// requires prob >= 0.8, so 0.72 only holds.
			name:       "medium confidence below consider band",
			res:        result(0.1, 0.3, 0.72, 0.5),
			wantAction: models.ActionHold,
		},
		{
			name:       "medium confidence strong signal",
			res:        result(0.1, 0.3, 0.85, 0.5),
			wantAction: models.ActionConsider,
		},
		{
			name:       "low confidence always holds",
			res:        result(0.9, 0.9, 0.95, 0.3),
			wantAction: models.ActionHold,
		},
		{
			name:       "boundary high confidence",
			res:        result(0.1, 0.3, 0.7, 0.6),
			wantAction: models.ActionBet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Resolve(tt.res, DefaultThresholds())
			if rec.Action != tt.wantAction {
				t.Errorf("Resolve() action = %s, want %s (reason: %s)",
					rec.Action, tt.wantAction, rec.Reason)
			}
		})
	}
}

func TestResolve_ImmediateUrgency(t *testing.T) {
	// prob_1min >= 0.7 attaches an IMMEDIATE suggestion regardless of the
	// primary action.
	tests := []struct {
		name       string
		res        models.EnsembleResult
		wantAction models.Action
	}{
		{"with BET primary", result(0.75, 0.3, 0.72, 0.8), models.ActionBet},
		{"with HOLD primary", result(0.75, 0.3, 0.5, 0.8), models.ActionHold},
		{"with BET_NO_GOAL primary", result(0.75, 0.3, 0.2, 0.8), models.ActionBetNoGoal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Resolve(tt.res, DefaultThresholds())
			if rec.Action != tt.wantAction {
				t.Fatalf("action = %s, want %s", rec.Action, tt.wantAction)
			}
			found := false
			for _, s := range rec.Suggestions {
				if s.Horizon == models.Horizon1Min && s.Urgency == models.UrgencyImmediate {
					found = true
				}
			}
			if !found {
				t.Error("expected an IMMEDIATE suggestion for the 1-minute horizon")
			}
		})
	}
}

func TestResolve_NoImmediateOutsideHighConfidence(t *testing.T) {
	rec := Resolve(result(0.9, 0.3, 0.5, 0.5), DefaultThresholds())
	for _, s := range rec.Suggestions {
		if s.Urgency == models.UrgencyImmediate {
			t.Error("immediate urgency must require the high-confidence tier")
		}
	}
}

func TestResolve_AvoidBets(t *testing.T) {
	// 1m and 5m sit in the uncertain band [0.4, 0.6]; 15m does not.
	rec := Resolve(result(0.45, 0.6, 0.72, 0.74), DefaultThresholds())

	if len(rec.AvoidBets) != 2 {
		t.Fatalf("expected 2 avoid entries, got %d", len(rec.AvoidBets))
	}
	if rec.AvoidBets[0].Horizon != models.Horizon1Min || rec.AvoidBets[1].Horizon != models.Horizon5Min {
		t.Errorf("unexpected avoid horizons: %+v", rec.AvoidBets)
	}
	// The avoid list is independent of the primary action.
	if rec.Action != models.ActionBet {
		t.Errorf("action = %s, want BET despite avoid entries", rec.Action)
	}
}
