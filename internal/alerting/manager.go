// Package alerting detects threshold crossings on ensemble results,
// deduplicates alerts by match minute, and delivers them to the notifier.
package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/jdals-gh/goalsentry/internal/logger"
	"github.com/jdals-gh/goalsentry/internal/models"
)

// Notifier delivers alerts to the outside world (e.g. Telegram).
type Notifier interface {
	Notify(alert models.Alert) error
}

// Store persists alerts and backs the retry sweep. Implemented by the
// SQLite storage layer.
type Store interface {
	SaveAlert(alert *models.Alert) error
	MarkAlertProcessed(id string) error
	IncrementAlertAttempts(id string) error
	PendingAlerts(maxAttempts int) ([]models.Alert, error)
	LoadAlertIDs() ([]string, error)
}

type Config struct {
	HighConfidence float64
	HighProb       float64
	MaxAttempts    int
}

func DefaultConfig() Config {
	return Config{
		HighConfidence: 0.6,
		HighProb:       0.7,
		MaxAttempts:    3,
	}
}

// Manager holds the alert-id registry. The registry is the sole deduplication
// mechanism: at most one alert per match per minute, safe under concurrent
// access from calculation jobs.
type Manager struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	notifier Notifier
	store    Store
	cfg      Config
}

// New creates a Manager and seeds the dedup registry from previously stored
// alerts, so a restart does not re-emit alerts for already-alerted minutes.
func New(notifier Notifier, store Store, cfg Config) (*Manager, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	m := &Manager{
		seen:     make(map[string]struct{}),
		notifier: notifier,
		store:    store,
		cfg:      cfg,
	}
	if store != nil {
		ids, err := store.LoadAlertIDs()
		if err != nil {
			return nil, fmt.Errorf("failed to load alert registry: %w", err)
		}
		for _, id := range ids {
			m.seen[id] = struct{}{}
		}
	}
	return m, nil
}

// crosses reports whether the result clears the alert gate: high confidence
// plus either a high 15-minute probability or an immediate urgency suggestion.
// A degraded result carries zero source confidence and never crosses.
func (m *Manager) crosses(res models.EnsembleResult) bool {
	if res.Confidence < m.cfg.HighConfidence {
		return false
	}
	if res.Prob(models.Horizon15Min) >= m.cfg.HighProb {
		return true
	}
	for _, s := range res.Recommendation.Suggestions {
		if s.Urgency == models.UrgencyImmediate {
			return true
		}
	}
	return false
}

// MaybeAlert creates, persists, and delivers an alert for the result if it
// crosses the actionable thresholds and no alert for this match minute exists
// yet. Returns nil when suppressed. Delivery failure leaves the alert stored
// unprocessed for the next retry sweep.
func (m *Manager) MaybeAlert(res models.EnsembleResult) *models.Alert {
	if !m.crosses(res) {
		return nil
	}

	id := models.AlertID(res.MatchID, res.Minute)

	m.mu.Lock()
	if _, dup := m.seen[id]; dup {
		m.mu.Unlock()
		logger.Debug("Alert %s suppressed: already emitted", id)
		return nil
	}
	m.seen[id] = struct{}{}
	m.mu.Unlock()

	alert := models.Alert{
		ID:          id,
		MatchID:     res.MatchID,
		Minute:      res.Minute,
		Message:     alertMessage(res),
		Probability: res.Prob(models.Horizon15Min),
		Confidence:  res.Confidence,
		CreatedAt:   time.Now(),
	}

	if m.store != nil {
		if err := m.store.SaveAlert(&alert); err != nil {
			logger.Error("Failed to persist alert %s: %v", id, err)
		}
	}

	if err := m.deliver(&alert); err != nil {
		logger.Warn("Alert %s delivery failed, will retry: %v", id, err)
	}

	return &alert
}

// deliver sends the alert and marks it processed only after the notifier
// acknowledged.
func (m *Manager) deliver(alert *models.Alert) error {
	if m.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}
	if err := m.notifier.Notify(*alert); err != nil {
		if m.store != nil {
			if serr := m.store.IncrementAlertAttempts(alert.ID); serr != nil {
				logger.Error("Failed to record delivery attempt for %s: %v", alert.ID, serr)
			}
		}
		alert.Attempts++
		return err
	}
	alert.Processed = true
	if m.store != nil {
		if err := m.store.MarkAlertProcessed(alert.ID); err != nil {
			logger.Error("Failed to mark alert %s processed: %v", alert.ID, err)
		}
	}
	return nil
}

// RetryPending re-delivers stored alerts that were never acknowledged, up to
// the configured attempt cap. Alerts that exhaust their attempts are dropped
// with a logged failure; nothing is retried indefinitely.
func (m *Manager) RetryPending() {
	if m.store == nil {
		return
	}
	pending, err := m.store.PendingAlerts(m.cfg.MaxAttempts)
	if err != nil {
		logger.Error("Failed to load pending alerts: %v", err)
		return
	}
	for i := range pending {
		alert := pending[i]
		if err := m.deliver(&alert); err != nil {
			if alert.Attempts >= m.cfg.MaxAttempts {
				logger.Error("Dropping alert %s after %d failed delivery attempts: %v",
					alert.ID, alert.Attempts, err)
			}
			continue
		}
		logger.Info("Delivered previously pending alert %s", alert.ID)
	}
}

func alertMessage(res models.EnsembleResult) string {
	return fmt.Sprintf("%s vs %s (%d-%d, %d'): goal probability %.0f%% in next 15min, confidence %.0f%%",
		res.HomeTeam, res.AwayTeam, res.HomeScore, res.AwayScore, res.Minute,
		res.Prob(models.Horizon15Min)*100, res.Confidence*100)
}
