// Package models defines the core domain entities: match snapshots, probability
// estimates, ensemble results, recommendations, and alerts.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Horizon is a fixed look-ahead window for which a goal probability is estimated.
type Horizon string

const (
	Horizon1Min  Horizon = "1m"
	Horizon5Min  Horizon = "5m"
	Horizon15Min Horizon = "15m"
)

// Horizons returns all supported horizons in ascending order.
func Horizons() []Horizon {
	return []Horizon{Horizon1Min, Horizon5Min, Horizon15Min}
}

// MatchState is a snapshot of one live match as delivered by the feed.
// Snapshots are immutable once read; a match produces many of them over its
// lifetime, always keyed by MatchID.
type MatchState struct {
	MatchID   int64     `json:"match_id"`
	Minute    int       `json:"minute"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	League    string    `json:"league,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Validate checks match state field constraints.
func (m *MatchState) Validate() error {
	if m.MatchID <= 0 {
		return errors.New("match ID must be positive")
	}
	if m.Minute < 0 {
		return errors.New("minute must not be negative")
	}
	// Added time routinely pushes past 90; anything beyond 150 is feed garbage.
	if m.Minute > 150 {
		return fmt.Errorf("minute %d is implausible", m.Minute)
	}
	if m.HomeTeam == "" {
		return errors.New("home team must not be empty")
	}
	if m.AwayTeam == "" {
		return errors.New("away team must not be empty")
	}
	if m.HomeScore < 0 || m.AwayScore < 0 {
		return errors.New("scores must not be negative")
	}
	return nil
}

// CalculationRecord tracks the last successful calculation dispatch for a match.
// A zero LastCalculationAt means the match has never been calculated.
type CalculationRecord struct {
	MatchID           int64
	LastCalculationAt time.Time
}
