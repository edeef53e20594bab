// Package throttle decides when a match is due for recalculation, enforcing
// per-match cooldowns, key-minute bypasses, and late-game urgency.
package throttle

import (
	"sync"
	"time"

	"github.com/jdals-gh/goalsentry/internal/models"
)

type Config struct {
	KeyMinutes        []int
	LateGameThreshold int
	LateGameCooldown  time.Duration
	StandardCooldown  time.Duration
}

func DefaultConfig() Config {
	return Config{
		KeyMinutes:        []int{59, 60, 69, 70, 79, 80},
		LateGameThreshold: 75,
		LateGameCooldown:  30 * time.Second,
		StandardCooldown:  60 * time.Second,
	}
}

// Throttle tracks per-match calculation records and in-flight markers.
// All state is guarded by a single mutex; every operation is an O(1) map access.
type Throttle struct {
	mu         sync.Mutex
	records    map[int64]*models.CalculationRecord
	inFlight   map[int64]struct{}
	keyMinutes map[int]struct{}
	cfg        Config
}

func New(cfg Config) *Throttle {
	keys := make(map[int]struct{}, len(cfg.KeyMinutes))
	for _, m := range cfg.KeyMinutes {
		keys[m] = struct{}{}
	}
	return &Throttle{
		records:    make(map[int64]*models.CalculationRecord),
		inFlight:   make(map[int64]struct{}),
		keyMinutes: keys,
		cfg:        cfg,
	}
}

// ShouldCalculate reports whether a recalculation for the match may run now.
// Rules, first match wins: key minutes always pass; late-game minutes use the
// short cooldown; everything else uses the standard cooldown. A match never
// calculated before is always due.
func (t *Throttle) ShouldCalculate(matchID int64, minute int, now time.Time) bool {
	if _, ok := t.keyMinutes[minute]; ok {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[matchID]
	if !ok || rec.LastCalculationAt.IsZero() {
		return true
	}

	cooldown := t.cfg.StandardCooldown
	if minute >= t.cfg.LateGameThreshold {
		cooldown = t.cfg.LateGameCooldown
	}
	return now.Sub(rec.LastCalculationAt) >= cooldown
}

// TryAcquire marks the match as having a calculation in flight. It returns
// false if one is already running, preventing two concurrent jobs for the
// same match.
func (t *Throttle) TryAcquire(matchID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inFlight[matchID]; busy {
		return false
	}
	t.inFlight[matchID] = struct{}{}
	return true
}

// Release clears the in-flight marker for the match.
func (t *Throttle) Release(matchID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, matchID)
}

// RecordDispatch records a confirmed dispatch. Called only after the job was
// actually enqueued, so a failed enqueue never marks the match as done.
// Timestamps are monotonically non-decreasing per match.
func (t *Throttle) RecordDispatch(matchID int64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[matchID]
	if !ok {
		t.records[matchID] = &models.CalculationRecord{MatchID: matchID, LastCalculationAt: now}
		return
	}
	if now.After(rec.LastCalculationAt) {
		rec.LastCalculationAt = now
	}
}

// LastCalculation returns the last recorded dispatch time for the match.
func (t *Throttle) LastCalculation(matchID int64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[matchID]
	if !ok {
		return time.Time{}, false
	}
	return rec.LastCalculationAt, true
}

// ExpireBefore removes calculation records older than cutoff and returns the
// number removed. In-flight markers are left untouched.
func (t *Throttle) ExpireBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, rec := range t.records {
		if rec.LastCalculationAt.Before(cutoff) {
			delete(t.records, id)
			removed++
		}
	}
	return removed
}

// Records returns a copy of all calculation records, keyed by match ID.
// Used for checkpointing on shutdown.
func (t *Throttle) Records() map[int64]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int64]time.Time, len(t.records))
	for id, rec := range t.records {
		out[id] = rec.LastCalculationAt
	}
	return out
}

// Restore seeds calculation records from persisted state. Existing entries
// are only moved forward, never backward.
func (t *Throttle) Restore(records map[int64]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, at := range records {
		rec, ok := t.records[id]
		if !ok {
			t.records[id] = &models.CalculationRecord{MatchID: id, LastCalculationAt: at}
			continue
		}
		if at.After(rec.LastCalculationAt) {
			rec.LastCalculationAt = at
		}
	}
}
