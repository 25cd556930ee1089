package scheduler

import (
	"time"
)

const (
	errorBackoffBase = time.Hour
	errorBackoffMax  = 24 * time.Hour

	confirmedRecheckInterval = 7 * 24 * time.Hour
	negativeRecheckInterval  = 14 * 24 * time.Hour
	recheckJitterFraction    = 0.10

	noFlightsRetryMin    = 2 * time.Hour
	noFlightsRetryWindow = 2 * time.Hour
)

// NextCheckDelay computes how long an aircraft rests after a check attempt.
// attempts is the consecutive failure count including this attempt, and is
// only consulted for error-like outcomes. Jitter is derived from the tail
// number so a given aircraft always lands on the same slot.
func NextCheckDelay(outcome Outcome, attempts int, tailNumber string) time.Duration {
	jitter := TailJitter(tailNumber)
	switch outcome {
	case OutcomeConfirmed:
		return jittered(confirmedRecheckInterval, jitter)
	case OutcomeNegative:
		return jittered(negativeRecheckInterval, jitter)
	case OutcomeNoFlights:
		return noFlightsRetryMin + time.Duration(jitter*float64(noFlightsRetryWindow))
	default:
		return errorBackoff(attempts)
	}
}

// errorBackoff doubles per consecutive failure, capped at one day.
func errorBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	// 1h, 2h, 4h, ... guard the shift against overflow past the cap.
	if attempts > 6 {
		return errorBackoffMax
	}
	delay := errorBackoffBase << (attempts - 1)
	if delay > errorBackoffMax {
		return errorBackoffMax
	}
	return delay
}

// jittered spreads an interval by ±recheckJitterFraction using a stable
// fraction in [0, 1).
func jittered(base time.Duration, fraction float64) time.Duration {
	offset := (fraction*2 - 1) * recheckJitterFraction
	return time.Duration(float64(base) * (1 + offset))
}
