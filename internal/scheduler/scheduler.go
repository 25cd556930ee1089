package scheduler

import (
	"context"
	"log"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
	"github.com/skyfleet/fleetlink/internal/errors"
	"github.com/skyfleet/fleetlink/internal/executor"
	"github.com/skyfleet/fleetlink/internal/flightdata"
	"github.com/skyfleet/fleetlink/internal/logging"
	"github.com/skyfleet/fleetlink/internal/observability"
)

// Package-level logger specific to the scheduler service
var logger *slog.Logger

func init() {
	var err error
	logFilePath := filepath.Join("logs", "scheduler.log")
	logger, _, err = logging.NewFileLogger(logFilePath, "scheduler", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize scheduler file logger: %v", err)
		logger = logging.ForService("scheduler")
	}
}

// Mode selects the run-loop cadence.
type Mode string

const (
	// ModeDiscovery runs small frequent batches to work through newly
	// discovered aircraft quickly.
	ModeDiscovery Mode = "discovery"
	// ModeMaintenance runs full-size batches on a slower cadence for
	// steady-state rechecking.
	ModeMaintenance Mode = "maintenance"
)

// CheckRunner runs one ground-truth check. *executor.Executor is the
// production implementation.
type CheckRunner interface {
	Run(ctx context.Context, req executor.CheckRequest) executor.CheckResult
}

// BatchSummary reports what a single RunBatch call did.
type BatchSummary struct {
	RunID       string
	Selected    int
	Confirmed   int
	Negative    int
	Errors      int
	Mismatches  int
	NoFlights   int
	BreakerOpen bool
	Duration    time.Duration
}

// Checked is the number of candidates a verification attempt ran for.
func (s *BatchSummary) Checked() int {
	return s.Confirmed + s.Negative + s.Errors + s.Mismatches + s.NoFlights
}

// Scheduler drives verification: it selects due candidates, refreshes
// their flight schedules from vendors, runs the ground-truth worker, and
// applies exactly one audit-log entry and one aircraft mutation per check.
type Scheduler struct {
	store   datastore.Interface
	vendors []flightdata.Client
	runner  CheckRunner
	metrics *observability.Metrics
	breaker *Breaker
	clock   clockwork.Clock
	cfg     conf.SchedulerSettings

	// busy guards against overlapping batches; manual and timer-driven
	// triggers share one scheduler.
	busy atomic.Bool
}

// Option adjusts a Scheduler at construction time.
type Option func(*Scheduler)

// WithClock substitutes the wall clock, used by tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
		s.breaker = NewBreaker(s.cfg.BreakerThreshold, s.cfg.BreakerCooldown, clock)
	}
}

// New assembles a Scheduler from its collaborators.
func New(store datastore.Interface, vendors []flightdata.Client, runner CheckRunner, metrics *observability.Metrics, cfg conf.SchedulerSettings, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		vendors: vendors,
		runner:  runner,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
		cfg:     cfg,
	}
	s.breaker = NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, s.clock)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrBatchInProgress is returned when RunBatch is called while a previous
// batch is still running.
var ErrBatchInProgress = errors.Newf("verification batch already in progress").
	Category(errors.CategoryState).
	Component("scheduler").
	Build()

// RunBatch selects up to size due candidates and verifies them. Candidate
// failures are absorbed into the summary; only being unable to start a
// batch at all is an error.
func (s *Scheduler) RunBatch(ctx context.Context, size int) (*BatchSummary, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}
	defer s.busy.Store(false)

	summary := &BatchSummary{RunID: uuid.New().String()}
	start := s.clock.Now()

	if !s.breaker.Allow() {
		summary.BreakerOpen = true
		s.metrics.SetBreakerOpen(true)
		logger.Warn("circuit breaker open, skipping batch",
			"run_id", summary.RunID,
			"consecutive_failures", s.breaker.Failures())
		return summary, nil
	}
	s.metrics.SetBreakerOpen(false)

	candidates, err := s.store.NextVerificationCandidates(size, s.clock.Now())
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("scheduler").
			Context("run_id", summary.RunID).
			Build()
	}
	summary.Selected = len(candidates)
	s.metrics.SetQueueDepth(len(candidates))
	logger.Info("starting verification batch",
		"run_id", summary.RunID,
		"selected", len(candidates),
		"batch_size", size)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, candidate := range candidates {
		delay := time.Duration(i) * s.cfg.StaggerDelay
		delay += time.Duration(TailJitter(candidate.TailNumber) * float64(s.cfg.StaggerDelay))
		aircraft := candidate
		g.Go(func() error {
			if err := s.sleep(gctx, delay); err != nil {
				return err
			}
			outcome := s.verifyOne(gctx, &aircraft, summary.RunID)
			s.metrics.RecordCheck(outcome.String())
			mu.Lock()
			switch outcome {
			case OutcomeConfirmed:
				summary.Confirmed++
			case OutcomeNegative:
				summary.Negative++
			case OutcomeError:
				summary.Errors++
			case OutcomeMismatch:
				summary.Mismatches++
			case OutcomeNoFlights:
				summary.NoFlights++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Only context cancellation escapes the workers.
		summary.Duration = s.clock.Since(start)
		return summary, err
	}

	summary.Duration = s.clock.Since(start)
	s.metrics.ObserveBatchDuration(summary.Duration.Seconds())
	logger.Info("verification batch complete",
		"run_id", summary.RunID,
		"selected", summary.Selected,
		"confirmed", summary.Confirmed,
		"negative", summary.Negative,
		"errors", summary.Errors,
		"mismatches", summary.Mismatches,
		"no_flights", summary.NoFlights,
		"duration_ms", summary.Duration.Milliseconds())
	return summary, nil
}

// VerifyTail runs a single on-demand check for one aircraft, bypassing
// candidate selection but not the breaker or the busy guard.
func (s *Scheduler) VerifyTail(ctx context.Context, tailNumber string) (Outcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return OutcomeError, ErrBatchInProgress
	}
	defer s.busy.Store(false)

	if !s.breaker.Allow() {
		return OutcomeError, errors.Newf("circuit breaker open, refusing check for %s", tailNumber).
			Category(errors.CategoryState).
			Component("scheduler").
			Build()
	}
	aircraft, err := s.store.GetAircraft(tailNumber)
	if err != nil {
		return OutcomeError, err
	}
	outcome := s.verifyOne(ctx, aircraft, uuid.New().String())
	s.metrics.RecordCheck(outcome.String())
	return outcome, nil
}

// RunLoop runs batches forever on the cadence for mode, until the context
// is cancelled. Between batches it waits the mode interval plus the batch
// cooldown spread by up to 20% so restarts do not align across instances.
func (s *Scheduler) RunLoop(ctx context.Context, mode Mode) error {
	interval := s.cfg.DiscoveryInterval
	size := 1
	if mode == ModeMaintenance {
		interval = s.cfg.MaintenanceInterval
		size = s.cfg.BatchSize
	}
	logger.Info("starting scheduler loop",
		"mode", string(mode),
		"interval", interval.String(),
		"batch_size", size)

	for {
		if _, err := s.RunBatch(ctx, size); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("batch failed", "mode", string(mode), "error", err)
		}
		wait := interval + s.cfg.BatchCooldown
		wait += time.Duration(rand.Float64() * 0.2 * float64(wait))
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// verifyOne performs the full check pipeline for one aircraft and returns
// the outcome. It always appends exactly one audit-log entry and applies
// exactly one aircraft mutation, whatever happens along the way.
func (s *Scheduler) verifyOne(ctx context.Context, aircraft *datastore.Aircraft, runID string) Outcome {
	tail := aircraft.TailNumber

	flight, fetchErr := s.refreshSchedule(ctx, tail)
	if fetchErr != nil {
		msg := fetchErr.Error()
		s.breaker.RecordFailure()
		s.finishAttempt(aircraft, OutcomeError, &datastore.VerificationLog{
			TailNumber: tail,
			Source:     datastore.SourceVendorSchedule,
			CheckedAt:  s.clock.Now(),
			Error:      &msg,
		}, nil, runID)
		return OutcomeError
	}
	if flight == nil {
		// Nothing flying soon; a clean observation, not a failure.
		reason := "no_upcoming_flights"
		s.breaker.RecordSuccess()
		s.finishAttempt(aircraft, OutcomeNoFlights, &datastore.VerificationLog{
			TailNumber: tail,
			Source:     datastore.SourceVendorSchedule,
			CheckedAt:  s.clock.Now(),
			Error:      &reason,
		}, nil, runID)
		return OutcomeNoFlights
	}

	req := executor.CheckRequest{
		TailNumber:   tail,
		FlightNumber: flight.FlightNumber,
		Date:         time.Unix(flight.DepartureTime, 0).UTC().Format("2006-01-02"),
		Origin:       flight.Origin,
		Destination:  flight.Destination,
	}
	result := s.runner.Run(ctx, req)

	entry := &datastore.VerificationLog{
		TailNumber:   tail,
		Source:       datastore.SourceGroundTruth,
		CheckedAt:    s.clock.Now(),
		FlightNumber: &flight.FlightNumber,
	}
	if result.AircraftType != "" {
		entry.AircraftType = &result.AircraftType
	}

	switch {
	case result.TailMismatch:
		// The worker saw a different airframe on this flight. Log what we
		// saw and leave the requested tail untouched.
		reason := "tail_mismatch:" + result.ObservedTail
		entry.Error = &reason
		s.breaker.RecordSuccess()
		s.finishAttempt(aircraft, OutcomeMismatch, entry, nil, runID)
		return OutcomeMismatch
	case result.Failed():
		entry.Error = &result.Error
		s.breaker.RecordFailure()
		s.finishAttempt(aircraft, OutcomeError, entry, nil, runID)
		return OutcomeError
	case result.HasWiFi:
		entry.HasWiFi = &result.HasWiFi
		if result.Provider != "" {
			entry.Provider = &result.Provider
		}
		s.breaker.RecordSuccess()
		s.finishAttempt(aircraft, OutcomeConfirmed, entry, &result, runID)
		return OutcomeConfirmed
	default:
		negative := false
		entry.HasWiFi = &negative
		s.breaker.RecordSuccess()
		s.finishAttempt(aircraft, OutcomeNegative, entry, &result, runID)
		return OutcomeNegative
	}
}

// refreshSchedule asks vendors in configured order for upcoming flights,
// persists the first non-empty schedule, and returns the soonest flight.
// A nil flight with nil error means no vendor knows of any upcoming leg.
func (s *Scheduler) refreshSchedule(ctx context.Context, tail string) (*datastore.ScheduledFlight, error) {
	var lastErr error
	for _, vendor := range s.vendors {
		flights, err := vendor.GetUpcomingFlights(ctx, tail)
		if err != nil {
			s.metrics.RecordVendorRequest(vendor.Name(), "error")
			logger.Warn("vendor schedule fetch failed",
				"vendor", vendor.Name(), "tail", tail, "error", err)
			lastErr = err
			continue
		}
		s.metrics.RecordVendorRequest(vendor.Name(), "ok")
		if len(flights) == 0 {
			continue
		}
		stored := make([]datastore.ScheduledFlight, 0, len(flights))
		now := s.clock.Now()
		for _, f := range flights {
			stored = append(stored, datastore.ScheduledFlight{
				TailNumber:    tail,
				FlightNumber:  f.FlightNumber,
				Origin:        f.Origin,
				Destination:   f.Destination,
				DepartureTime: f.DepartureTime,
				ArrivalTime:   f.ArrivalTime,
				RefreshedAt:   now,
			})
		}
		if err := s.store.ReplaceFlights(tail, stored); err != nil {
			return nil, err
		}
		return &stored[0], nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	// All vendors answered cleanly with nothing scheduled. Fall back to
	// anything still fresh in the store before declaring no flights.
	cached, err := s.store.UpcomingFlights(tail, s.clock.Now(), 1)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return &cached[0], nil
	}
	return nil, nil
}

// finishAttempt writes the audit-log entry and the aircraft mutation for
// one completed attempt, then refreshes the discovery priority.
func (s *Scheduler) finishAttempt(aircraft *datastore.Aircraft, outcome Outcome, entry *datastore.VerificationLog, result *executor.CheckResult, runID string) {
	if err := s.store.AppendVerificationLog(entry); err != nil {
		logger.Error("failed to append verification log",
			"run_id", runID, "tail", aircraft.TailNumber, "error", err)
	}

	newStatus := Transition(aircraft.VerificationStatus, outcome)
	mutation := datastore.VerificationMutation{
		Status:       newStatus,
		VerifiedWiFi: aircraft.VerifiedWiFi,
		VerifiedAt:   aircraft.VerifiedAt,
		LastError:    entry.Error,
	}
	switch outcome {
	case OutcomeError, OutcomeMismatch:
		mutation.CheckAttempts = aircraft.CheckAttempts + 1
	default:
		mutation.CheckAttempts = 0
	}
	if result != nil {
		now := s.clock.Now()
		mutation.VerifiedAt = &now
		if outcome == OutcomeConfirmed {
			provider := result.Provider
			if provider == "" {
				provider = "unknown"
			}
			mutation.VerifiedWiFi = &provider
		} else {
			mutation.VerifiedWiFi = nil
		}
	}
	mutation.NextCheckAfter = s.clock.Now().Add(
		NextCheckDelay(outcome, mutation.CheckAttempts, aircraft.TailNumber))

	if err := s.store.ApplyVerification(aircraft.TailNumber, mutation); err != nil {
		logger.Error("failed to apply verification result",
			"run_id", runID, "tail", aircraft.TailNumber, "error", err)
		return
	}
	priority := PriorityScore(newStatus, aircraft.AircraftType, aircraft.TailNumber)
	if err := s.store.SetDiscoveryPriority(aircraft.TailNumber, priority); err != nil {
		logger.Warn("failed to update discovery priority",
			"run_id", runID, "tail", aircraft.TailNumber, "error", err)
	}

	logger.Info("check attempt finished",
		"run_id", runID,
		"tail", aircraft.TailNumber,
		"outcome", outcome.String(),
		"status", string(newStatus),
		"attempts", mutation.CheckAttempts,
		"next_check_after", mutation.NextCheckAfter.UTC().Format(time.RFC3339))
}

// sleep waits for d on the scheduler clock, or returns early when the
// context is cancelled.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
