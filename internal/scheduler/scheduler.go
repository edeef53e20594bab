// Package scheduler drives the calculation pipeline: it polls live matches on
// a fixed tick, gates them through the throttle, dispatches calculation jobs
// into a bounded worker pool, and periodically runs maintenance.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jdals-gh/goalsentry/internal/alerting"
	"github.com/jdals-gh/goalsentry/internal/ensemble"
	"github.com/jdals-gh/goalsentry/internal/logger"
	"github.com/jdals-gh/goalsentry/internal/models"
	"github.com/jdals-gh/goalsentry/internal/throttle"
)

// MatchSource delivers the current set of live match snapshots.
type MatchSource interface {
	FetchLiveMatches(ctx context.Context) ([]models.MatchState, error)
}

// Estimator produces per-horizon goal probabilities for a match state.
type Estimator interface {
	Estimate(ctx context.Context, state models.MatchState) (models.ProbabilityEstimate, error)
}

// ResultSink receives every computed ensemble result. Emission is best-effort:
// a missed result is superseded by the next cycle.
type ResultSink interface {
	EmitResult(res *models.EnsembleResult) error
}

// Maintainer expires stored results, alerts, and calculation records.
type Maintainer interface {
	ExpireBefore(resultCutoff, alertCutoff, recordCutoff time.Time) (int64, int64, int64, error)
}

// StatusNotifier reports poll-path failures and recoveries out of band.
type StatusNotifier interface {
	SendError(err error) error
	SendRecovery(failureCount int) error
}

type Config struct {
	PollInterval     time.Duration
	MinMinute        int
	MaxMinute        int
	MaxConcurrent    int
	EstimatorTimeout time.Duration
	MaintenanceEvery int
	ShutdownGrace    time.Duration
	StalenessBound   time.Duration
	RecordRetention  time.Duration
	AlertRetention   time.Duration
	Weights          ensemble.Weights
	Thresholds       ensemble.Thresholds
}

func DefaultConfig() Config {
	return Config{
		PollInterval:     15 * time.Second,
		MinMinute:        55,
		MaxMinute:        95,
		MaxConcurrent:    4,
		EstimatorTimeout: 30 * time.Second,
		MaintenanceEvery: 20,
		ShutdownGrace:    30 * time.Second,
		StalenessBound:   5 * time.Minute,
		RecordRetention:  24 * time.Hour,
		AlertRetention:   48 * time.Hour,
		Weights:          ensemble.DefaultWeights(),
		Thresholds:       ensemble.DefaultThresholds(),
	}
}

// Deps holds the scheduler's collaborators. Maintainer and Status are optional.
type Deps struct {
	Source     MatchSource
	ML         Estimator
	Historical Estimator
	Sink       ResultSink
	Alerts     *alerting.Manager
	Throttle   *throttle.Throttle
	Maintainer Maintainer
	Status     StatusNotifier
}

// Scheduler owns the polling loop. The loop itself is single-threaded;
// calculation jobs run concurrently in a pool bounded by MaxConcurrent.
type Scheduler struct {
	cfg  Config
	deps Deps

	sem chan struct{}
	wg  sync.WaitGroup

	mu                  sync.Mutex
	lastFetch           time.Time
	consecutiveFailures int

	tickCount int
}

func New(cfg Config, deps Deps) *Scheduler {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Weights.Valid() != nil {
		cfg.Weights = ensemble.DefaultWeights()
	}
	return &Scheduler{
		cfg:  cfg,
		deps: deps,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run drives the loop until ctx is cancelled. On shutdown it stops accepting
// new dispatches and waits up to ShutdownGrace for in-flight jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	logger.Info("Scheduler started (interval: %v, minute band: %d-%d, workers: %d)",
		s.cfg.PollInterval, s.cfg.MinMinute, s.cfg.MaxMinute, s.cfg.MaxConcurrent)

	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopping, draining in-flight jobs")
			s.drain()
			return

		case <-ticker.C:
			s.cycle(ctx)
			s.tickCount++
			if s.tickCount%s.cfg.MaintenanceEvery == 0 {
				s.maintenance()
			}
		}
	}
}

// cycle performs one poll-and-dispatch pass. Feed errors degrade to an empty
// match set; nothing here may take down the loop.
func (s *Scheduler) cycle(ctx context.Context) {
	matches, err := s.deps.Source.FetchLiveMatches(ctx)
	if err != nil {
		logger.Error("Failed to fetch live matches, skipping tick: %v", err)
		s.recordFetchFailure(err)
		return
	}
	s.recordFetchSuccess()

	dispatched, skipped := 0, 0
	now := time.Now()
	for i := range matches {
		m := matches[i]
		if m.Minute < s.cfg.MinMinute || m.Minute > s.cfg.MaxMinute {
			continue
		}
		if !s.deps.Throttle.ShouldCalculate(m.MatchID, m.Minute, now) {
			continue
		}
		if !s.deps.Throttle.TryAcquire(m.MatchID) {
			continue
		}
		if ctx.Err() != nil {
			s.deps.Throttle.Release(m.MatchID)
			return
		}

		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go s.runJob(ctx, m)
			// Dispatch confirmed: only now is the cooldown clock reset.
			s.deps.Throttle.RecordDispatch(m.MatchID, now)
			dispatched++
		default:
			// Pool full. The match waits for the next tick instead of
			// blocking the loop.
			s.deps.Throttle.Release(m.MatchID)
			skipped++
		}
	}

	logger.Debug("Cycle complete: %d matches, %d dispatched, %d deferred (pool full)",
		len(matches), dispatched, skipped)
}

// runJob executes one calculation: estimate, combine, resolve, emit, alert.
// It derives its context from the loop's but survives shutdown cancellation;
// the estimator timeout and the drain grace period bound its lifetime.
func (s *Scheduler) runJob(ctx context.Context, m models.MatchState) {
	defer func() {
		<-s.sem
		s.deps.Throttle.Release(m.MatchID)
		s.wg.Done()
	}()

	jobCtx := context.WithoutCancel(ctx)
	ml, historical := s.fetchEstimates(jobCtx, m)

	res := ensemble.Combine(m, ml, historical, s.cfg.Weights, time.Now())
	res.Recommendation = ensemble.Resolve(res, s.cfg.Thresholds)

	if res.Degraded {
		logger.Warn("Match %d minute %d: degraded result (estimator failure), confidence %.2f",
			m.MatchID, m.Minute, res.Confidence)
	}

	if err := s.deps.Sink.EmitResult(&res); err != nil {
		logger.Warn("Failed to emit result for match %d: %v", m.MatchID, err)
	}

	if alert := s.deps.Alerts.MaybeAlert(res); alert != nil {
		logger.Info("Alert %s raised for match %d minute %d (prob %.2f, confidence %.2f)",
			alert.ID, m.MatchID, m.Minute, alert.Probability, alert.Confidence)
	}
}

type estimateOut struct {
	est models.ProbabilityEstimate
	err error
}

// fetchEstimates calls both estimators concurrently, each under its own
// timeout. A failed or timed-out source comes back nil so the combiner can
// substitute the neutral estimate.
func (s *Scheduler) fetchEstimates(ctx context.Context, m models.MatchState) (*models.ProbabilityEstimate, *models.ProbabilityEstimate) {
	call := func(e Estimator) chan estimateOut {
		out := make(chan estimateOut, 1)
		go func() {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.EstimatorTimeout)
			defer cancel()
			est, err := e.Estimate(callCtx, m)
			out <- estimateOut{est: est, err: err}
		}()
		return out
	}

	mlCh := call(s.deps.ML)
	histCh := call(s.deps.Historical)

	var ml, historical *models.ProbabilityEstimate
	if r := <-mlCh; r.err != nil {
		logger.Warn("ML estimator failed for match %d: %v", m.MatchID, r.err)
	} else {
		ml = &r.est
	}
	if r := <-histCh; r.err != nil {
		logger.Warn("Historical estimator failed for match %d: %v", m.MatchID, r.err)
	} else {
		historical = &r.est
	}
	return ml, historical
}

// maintenance expires aged state, retries undelivered alerts, and runs a
// lightweight health check. Failures are logged, never fatal to the loop.
func (s *Scheduler) maintenance() {
	now := time.Now()

	removed := s.deps.Throttle.ExpireBefore(now.Add(-s.cfg.RecordRetention))
	if removed > 0 {
		logger.Debug("Maintenance: expired %d calculation records", removed)
	}

	if s.deps.Maintainer != nil {
		nResults, nAlerts, nRecords, err := s.deps.Maintainer.ExpireBefore(
			now.Add(-s.cfg.AlertRetention),
			now.Add(-s.cfg.AlertRetention),
			now.Add(-s.cfg.RecordRetention),
		)
		if err != nil {
			logger.Error("Maintenance: retention sweep failed: %v", err)
		} else if nResults+nAlerts+nRecords > 0 {
			logger.Debug("Maintenance: expired %d results, %d alerts, %d stored records",
				nResults, nAlerts, nRecords)
		}
	}

	s.deps.Alerts.RetryPending()

	s.mu.Lock()
	lastFetch := s.lastFetch
	s.mu.Unlock()
	if !lastFetch.IsZero() && now.Sub(lastFetch) > s.cfg.StalenessBound {
		logger.Warn("Health: no fresh snapshots for %v (bound %v)", now.Sub(lastFetch), s.cfg.StalenessBound)
	}
	if len(s.sem) == cap(s.sem) {
		logger.Warn("Health: worker pool saturated (%d in flight)", cap(s.sem))
	}
}

func (s *Scheduler) recordFetchFailure(err error) {
	s.mu.Lock()
	s.consecutiveFailures++
	first := s.consecutiveFailures == 1
	s.mu.Unlock()

	if first && s.deps.Status != nil {
		if serr := s.deps.Status.SendError(err); serr != nil {
			logger.Warn("Failed to send error notification: %v", serr)
		}
	}
}

func (s *Scheduler) recordFetchSuccess() {
	s.mu.Lock()
	failures := s.consecutiveFailures
	s.consecutiveFailures = 0
	s.lastFetch = time.Now()
	s.mu.Unlock()

	if failures > 0 && s.deps.Status != nil {
		if serr := s.deps.Status.SendRecovery(failures); serr != nil {
			logger.Warn("Failed to send recovery notification: %v", serr)
		}
	}
}

// drain waits for in-flight jobs, bounded by the shutdown grace period.
func (s *Scheduler) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("All in-flight jobs finished")
	case <-time.After(s.cfg.ShutdownGrace):
		logger.Warn("Shutdown grace period elapsed with jobs still in flight")
	}
}
