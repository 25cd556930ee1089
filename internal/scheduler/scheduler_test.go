package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
	"github.com/skyfleet/fleetlink/internal/errors"
	"github.com/skyfleet/fleetlink/internal/executor"
	"github.com/skyfleet/fleetlink/internal/flightdata"
)

func TestMain(m *testing.M) {
	// The package file logger keeps a lumberjack rotation goroutine alive
	// for the process lifetime.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"))
}

type fakeVendor struct {
	name    string
	flights []flightdata.FlightUpdate
	err     error

	mu    sync.Mutex
	calls int
}

func (v *fakeVendor) Name() string { return v.name }

func (v *fakeVendor) GetUpcomingFlights(_ context.Context, _ string) ([]flightdata.FlightUpdate, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.flights, v.err
}

func (v *fakeVendor) Close() {}

func (v *fakeVendor) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []executor.CheckRequest
	result   executor.CheckResult
}

func (r *fakeRunner) Run(_ context.Context, req executor.CheckRequest) executor.CheckResult {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	res := r.result
	if res.ObservedTail != "" && res.ObservedTail != req.TailNumber {
		res.TailMismatch = true
	}
	return res
}

func (r *fakeRunner) requestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	store := datastore.New(filepath.Join(t.TempDir(), "scheduler-test.db"), false)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func seedAircraft(t *testing.T, store datastore.Interface, tail string) *datastore.Aircraft {
	t.Helper()
	aircraft, err := store.UpsertAircraft(datastore.AircraftSighting{
		TailNumber:   tail,
		AircraftType: "E75L",
		Source:       datastore.SourceVendorSchedule,
	})
	require.NoError(t, err)
	return aircraft
}

func testSettings() conf.SchedulerSettings {
	return conf.SchedulerSettings{
		BatchSize:           3,
		StaggerDelay:        0,
		BatchCooldown:       0,
		DiscoveryInterval:   10 * time.Millisecond,
		MaintenanceInterval: 10 * time.Millisecond,
		BreakerThreshold:    5,
		BreakerCooldown:     30 * time.Minute,
	}
}

func upcomingFlight(dep time.Time) flightdata.FlightUpdate {
	return flightdata.FlightUpdate{
		FlightNumber:  "UA5331",
		Origin:        "ORD",
		Destination:   "DEN",
		DepartureTime: dep.Unix(),
		ArrivalTime:   dep.Add(2 * time.Hour).Unix(),
	}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		current datastore.Status
		outcome Outcome
		want    datastore.Status
	}{
		{datastore.StatusUnknown, OutcomeConfirmed, datastore.StatusConfirmed},
		{datastore.StatusUnknown, OutcomeNegative, datastore.StatusNegative},
		{datastore.StatusUnknown, OutcomeError, datastore.StatusUnknown},
		{datastore.StatusUnknown, OutcomeNoFlights, datastore.StatusUnknown},
		{datastore.StatusConfirmed, OutcomeNegative, datastore.StatusNegative},
		{datastore.StatusNegative, OutcomeConfirmed, datastore.StatusConfirmed},
		{datastore.StatusConfirmed, OutcomeError, datastore.StatusConfirmed},
		{datastore.StatusConfirmed, OutcomeMismatch, datastore.StatusConfirmed},
		{datastore.StatusNegative, OutcomeError, datastore.StatusNegative},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Transition(tc.current, tc.outcome),
			"transition from %s on %s", tc.current, tc.outcome)
	}
}

func TestPriorityScore(t *testing.T) {
	unknown := PriorityScore(datastore.StatusUnknown, "E75L", "N605UX")
	confirmed := PriorityScore(datastore.StatusConfirmed, "E75L", "N605UX")
	assert.Greater(t, unknown, confirmed, "unverified aircraft must outrank verified ones")

	withBonus := PriorityScore(datastore.StatusUnknown, "E75L", "N605UX")
	withoutBonus := PriorityScore(datastore.StatusUnknown, "B738", "N605UX")
	assert.InDelta(t, priorityTypeBonus, withBonus-withoutBonus, 1e-9)

	// Same inputs always score the same.
	assert.Equal(t, unknown, PriorityScore(datastore.StatusUnknown, "E75L", "N605UX"))

	for _, tail := range []string{"N12345", "N605UX", "N77261", "N37502"} {
		score := PriorityScore(datastore.StatusUnknown, "E75L", tail)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestTailJitterStable(t *testing.T) {
	a := TailJitter("N12345")
	assert.Equal(t, a, TailJitter("n12345 "), "jitter must ignore case and padding")
	assert.GreaterOrEqual(t, a, 0.0)
	assert.Less(t, a, 1.0)
}

func TestNextCheckDelay(t *testing.T) {
	t.Run("error backoff doubles and caps", func(t *testing.T) {
		assert.Equal(t, time.Hour, errorBackoff(1))
		assert.Equal(t, 2*time.Hour, errorBackoff(2))
		assert.Equal(t, 4*time.Hour, errorBackoff(3))
		assert.Equal(t, 16*time.Hour, errorBackoff(5))
		assert.Equal(t, 24*time.Hour, errorBackoff(6))
		assert.Equal(t, 24*time.Hour, errorBackoff(40))
		assert.Equal(t, time.Hour, errorBackoff(0))
	})

	t.Run("clean outcomes rest on long jittered intervals", func(t *testing.T) {
		confirmed := NextCheckDelay(OutcomeConfirmed, 0, "N12345")
		assert.GreaterOrEqual(t, confirmed, time.Duration(float64(confirmedRecheckInterval)*0.9))
		assert.LessOrEqual(t, confirmed, time.Duration(float64(confirmedRecheckInterval)*1.1))

		negative := NextCheckDelay(OutcomeNegative, 0, "N12345")
		assert.GreaterOrEqual(t, negative, time.Duration(float64(negativeRecheckInterval)*0.9))
		assert.Greater(t, negative, confirmed)
	})

	t.Run("no flights retries within the short window", func(t *testing.T) {
		d := NextCheckDelay(OutcomeNoFlights, 0, "N12345")
		assert.GreaterOrEqual(t, d, noFlightsRetryMin)
		assert.Less(t, d, noFlightsRetryMin+noFlightsRetryWindow)
		assert.Equal(t, d, NextCheckDelay(OutcomeNoFlights, 0, "N12345"))
	})
}

func TestBreaker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBreaker(3, 30*time.Minute, clock)

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "below threshold stays closed")
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "success resets the count")

	b.RecordFailure()
	assert.False(t, b.Allow(), "threshold reached opens the breaker")
	assert.True(t, b.IsOpen())

	clock.Advance(29 * time.Minute)
	assert.False(t, b.Allow(), "still inside cooldown")

	clock.Advance(2 * time.Minute)
	assert.True(t, b.Allow(), "cooldown elapsed closes the breaker")
	assert.Equal(t, 0, b.Failures())
}

func TestRunBatchConfirms(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N605UX")

	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(3 * time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{
		HasWiFi:      true,
		ObservedTail: "N605UX",
		Provider:     "Starlink",
		AircraftType: "E75L",
	}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings())

	summary, err := s.RunBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Selected)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Checked())
	assert.NotEmpty(t, summary.RunID)

	aircraft, err := store.GetAircraft("N605UX")
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusConfirmed, aircraft.VerificationStatus)
	require.NotNil(t, aircraft.VerifiedWiFi)
	assert.Equal(t, "Starlink", *aircraft.VerifiedWiFi)
	assert.NotNil(t, aircraft.VerifiedAt)
	assert.Equal(t, 0, aircraft.CheckAttempts)
	assert.Nil(t, aircraft.LastError)
	assert.Greater(t, aircraft.NextCheckAfter.Sub(time.Now()), 6*24*time.Hour,
		"confirmed aircraft rest for about a week")

	history, err := store.VerificationHistory("N605UX", 10)
	require.NoError(t, err)
	require.Len(t, history, 1, "exactly one audit entry per attempt")
	assert.Equal(t, datastore.SourceGroundTruth, history[0].Source)
	require.NotNil(t, history[0].HasWiFi)
	assert.True(t, *history[0].HasWiFi)

	require.Equal(t, 1, runner.requestCount())
	runner.mu.Lock()
	req := runner.requests[0]
	runner.mu.Unlock()
	assert.Equal(t, "UA5331", req.FlightNumber)
	assert.Equal(t, "ORD", req.Origin)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, req.Date)
}

func TestRunBatchNegative(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N17159")

	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{HasWiFi: false, ObservedTail: "N17159"}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings())

	summary, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Negative)

	aircraft, err := store.GetAircraft("N17159")
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusNegative, aircraft.VerificationStatus)
	assert.Nil(t, aircraft.VerifiedWiFi)
	assert.NotNil(t, aircraft.VerifiedAt)
}

func TestRunBatchWorkerErrorKeepsStatus(t *testing.T) {
	store := newTestStore(t)
	seeded := seedAircraft(t, store, "N77261")

	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{Error: executor.ErrTimeout}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings())

	summary, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)

	aircraft, err := store.GetAircraft("N77261")
	require.NoError(t, err)
	assert.Equal(t, seeded.VerificationStatus, aircraft.VerificationStatus,
		"errors never change verification status")
	assert.Equal(t, 1, aircraft.CheckAttempts)
	require.NotNil(t, aircraft.LastError)
	assert.Equal(t, executor.ErrTimeout, *aircraft.LastError)
	assert.True(t, aircraft.NextCheckAfter.After(time.Now().Add(50*time.Minute)),
		"first error backs off about an hour")

	history, err := store.VerificationHistory("N77261", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].HasWiFi)
	require.NotNil(t, history[0].Error)
	assert.Equal(t, executor.ErrTimeout, *history[0].Error)
}

func TestConfirmedAircraftSurvivesLaterTimeout(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N605UX")

	clock := clockwork.NewFakeClockAt(time.Now())
	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(10 * 24 * time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{
		HasWiFi: true, ObservedTail: "N605UX", Provider: "Starlink",
	}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings(), WithClock(clock))

	_, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)

	confirmed, err := store.GetAircraft("N605UX")
	require.NoError(t, err)
	require.Equal(t, datastore.StatusConfirmed, confirmed.VerificationStatus)

	// A week and change later the recheck comes due, and this time the
	// worker hangs.
	clock.Advance(8 * 24 * time.Hour)
	runner.result = executor.CheckResult{Error: executor.ErrTimeout}

	summary, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Errors)

	after, err := store.GetAircraft("N605UX")
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusConfirmed, after.VerificationStatus)
	require.NotNil(t, after.VerifiedWiFi)
	assert.Equal(t, "Starlink", *after.VerifiedWiFi)
	assert.Equal(t, 1, after.CheckAttempts)
	gap := after.NextCheckAfter.Sub(clock.Now())
	assert.InDelta(t, float64(time.Hour), float64(gap), float64(time.Second),
		"first failure backs off one hour")
	assert.True(t, after.NextCheckAfter.After(confirmed.NextCheckAfter),
		"next check never moves backwards across attempts")
}

func TestRunBatchTailMismatchIsNeutral(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N37502")

	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(time.Hour))},
	}
	// Worker confirms WiFi, but on a different airframe.
	runner := &fakeRunner{result: executor.CheckResult{
		HasWiFi:      true,
		ObservedTail: "N99999",
		Provider:     "Starlink",
	}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings())

	summary, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Mismatches)

	aircraft, err := store.GetAircraft("N37502")
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusUnknown, aircraft.VerificationStatus,
		"a mismatched observation must not update the requested tail")
	assert.Nil(t, aircraft.VerifiedWiFi)
	assert.Equal(t, 1, aircraft.CheckAttempts)

	history, err := store.VerificationHistory("N37502", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Error)
	assert.Contains(t, *history[0].Error, "tail_mismatch")
	assert.Contains(t, *history[0].Error, "N99999")
}

func TestRunBatchNoUpcomingFlights(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N12345")

	vendor := &fakeVendor{name: "aerodata"}
	runner := &fakeRunner{}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings())

	summary, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NoFlights)
	assert.Zero(t, runner.requestCount(), "no worker run without a flight")

	aircraft, err := store.GetAircraft("N12345")
	require.NoError(t, err)
	assert.Equal(t, 0, aircraft.CheckAttempts, "no flights is not a failure")
	gap := time.Until(aircraft.NextCheckAfter)
	assert.Greater(t, gap, 90*time.Minute)
	assert.Less(t, gap, 5*time.Hour)

	history, err := store.VerificationHistory("N12345", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, datastore.SourceVendorSchedule, history[0].Source)
}

func TestRunBatchVendorFallback(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N605UX")

	primary := &fakeVendor{
		name: "aerodata",
		err: errors.Newf("bad gateway").
			Category(errors.CategoryNetwork).
			Component("flightdata").
			Build(),
	}
	secondary := &fakeVendor{
		name:    "aeroapi",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{HasWiFi: true, ObservedTail: "N605UX", Provider: "Starlink"}}
	s := New(store, []flightdata.Client{primary, secondary}, runner, nil, testSettings())

	summary, err := s.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
}

func TestRunBatchBreakerOpens(t *testing.T) {
	store := newTestStore(t)
	for _, tail := range []string{"N1", "N2", "N3", "N4", "N5"} {
		seedAircraft(t, store, tail)
	}

	clock := clockwork.NewFakeClockAt(time.Now())
	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{Error: executor.ErrTerminated}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings(), WithClock(clock))

	summary, err := s.RunBatch(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Errors)
	assert.True(t, s.breaker.IsOpen(), "five consecutive failures trip the breaker")

	// While open, batches do nothing.
	summary, err = s.RunBatch(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, summary.BreakerOpen)
	assert.Zero(t, summary.Selected)
	assert.Equal(t, 5, runner.requestCount(), "no new worker runs while open")

	// After the cooldown the breaker admits work again. The aircraft are
	// resting on error backoff, so advance past the first backoff step too.
	clock.Advance(2 * time.Hour)
	summary, err = s.RunBatch(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, summary.BreakerOpen)
	assert.Equal(t, 5, summary.Selected)
}

func TestRunBatchBusyGuard(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil, &fakeRunner{}, nil, testSettings())

	s.busy.Store(true)
	_, err := s.RunBatch(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchInProgress)
	assert.Equal(t, errors.CategoryState, errors.CategoryOf(err))

	s.busy.Store(false)
	_, err = s.RunBatch(context.Background(), 1)
	assert.NoError(t, err)
}

func TestVerifyTail(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N605UX")

	vendor := &fakeVendor{
		name:    "aerodata",
		flights: []flightdata.FlightUpdate{upcomingFlight(time.Now().Add(time.Hour))},
	}
	runner := &fakeRunner{result: executor.CheckResult{HasWiFi: true, ObservedTail: "N605UX", Provider: "Starlink"}}
	s := New(store, []flightdata.Client{vendor}, runner, nil, testSettings())

	outcome, err := s.VerifyTail(context.Background(), "N605UX")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	_, err = s.VerifyTail(context.Background(), "N00000")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.CategoryOf(err))
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	seedAircraft(t, store, "N12345")

	vendor := &fakeVendor{name: "aerodata"}
	s := New(store, []flightdata.Client{vendor}, &fakeRunner{}, nil, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.RunLoop(ctx, ModeDiscovery)
	}()

	// Let at least one batch happen, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop on cancel")
	}
	assert.GreaterOrEqual(t, vendor.callCount(), 1)
}
