package models

import (
	"errors"
	"fmt"
	"time"
)

// AlertID derives the deterministic alert identifier for a match minute.
// One match minute maps to exactly one ID, which is the sole deduplication
// mechanism for alerts.
func AlertID(matchID int64, minute int) string {
	return fmt.Sprintf("%d:%d", matchID, minute)
}

// Alert is raised when an ensemble result crosses the actionable thresholds.
// Lifecycle ends when the retention sweep archives it.
type Alert struct {
	ID          string    `json:"id"`
	MatchID     int64     `json:"match_id"`
	Minute      int       `json:"minute"`
	Message     string    `json:"message"`
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
	Processed   bool      `json:"processed"`
	Attempts    int       `json:"attempts"`
}

// Validate checks alert field constraints.
func (a *Alert) Validate() error {
	if a.ID == "" {
		return errors.New("alert ID must not be empty")
	}
	if a.ID != AlertID(a.MatchID, a.Minute) {
		return fmt.Errorf("alert ID %q does not match match %d minute %d", a.ID, a.MatchID, a.Minute)
	}
	if a.Probability < 0.0 || a.Probability > 1.0 {
		return errors.New("probability must be between 0.0 and 1.0")
	}
	if a.Confidence < 0.0 || a.Confidence > 1.0 {
		return errors.New("confidence must be between 0.0 and 1.0")
	}
	if a.Message == "" {
		return errors.New("message must not be empty")
	}
	return nil
}
