package scheduler

import (
	"github.com/skyfleet/fleetlink/internal/datastore"
)

// Outcome classifies one completed check attempt.
type Outcome int

const (
	// OutcomeConfirmed is a clean ground-truth check that found the feature.
	OutcomeConfirmed Outcome = iota
	// OutcomeNegative is a clean ground-truth check that did not find it.
	OutcomeNegative
	// OutcomeError is a recoverable failure (vendor, worker, timeout).
	OutcomeError
	// OutcomeMismatch means the worker observed a different aircraft than
	// requested; the result is neutral for the requested tail.
	OutcomeMismatch
	// OutcomeNoFlights means no vendor knows an upcoming flight to check.
	OutcomeNoFlights
)

// String returns the metrics/log label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeNegative:
		return "negative"
	case OutcomeError:
		return "error"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeNoFlights:
		return "no_flights"
	default:
		return "unknown"
	}
}

// Transition is the single place verification status changes. Only clean
// ground-truth results move the status; confirmed and negative may flip
// each other on a later disagreeing result, and nothing ever demotes an
// aircraft back to unknown.
func Transition(current datastore.Status, outcome Outcome) datastore.Status {
	switch outcome {
	case OutcomeConfirmed:
		return datastore.StatusConfirmed
	case OutcomeNegative:
		return datastore.StatusNegative
	default:
		return current
	}
}
