// Package reconcile computes read-only summary statistics and flags
// disagreements between the curated equipped-aircraft list and the
// ground-truth verification results.
package reconcile

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/skyfleet/fleetlink/internal/datastore"
	"github.com/skyfleet/fleetlink/internal/errors"
)

// Summary is the operational snapshot used by the stats command and the
// external reporting surface.
type Summary struct {
	TotalAircraft int64
	ByStatus      map[datastore.Status]int64
	ChecksLast24h int64
	GeneratedAt   time.Time
}

// Mismatch flags a tail whose curated provider disagrees with what the
// latest ground-truth check actually observed.
type Mismatch struct {
	TailNumber       string
	CuratedProvider  string
	ObservedProvider string // empty when ground truth saw no equipment
	ObservedAt       time.Time
}

// Reconciler reads the store and never writes it.
type Reconciler struct {
	store datastore.Interface
	clock clockwork.Clock
}

// New returns a Reconciler over store.
func New(store datastore.Interface) *Reconciler {
	return &Reconciler{store: store, clock: clockwork.NewRealClock()}
}

// NewWithClock is used by tests to pin the rolling window.
func NewWithClock(store datastore.Interface, clock clockwork.Clock) *Reconciler {
	return &Reconciler{store: store, clock: clock}
}

// Summary computes counts by verification status and the number of check
// attempts in the trailing 24 hours.
func (r *Reconciler) Summary() (*Summary, error) {
	byStatus, err := r.store.CountByStatus()
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}
	now := r.clock.Now()
	checks, err := r.store.ChecksSince(now.Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalAircraft: total,
		ByStatus:      byStatus,
		ChecksLast24h: checks,
		GeneratedAt:   now,
	}, nil
}

// Mismatches compares every curated entry against the latest ground-truth
// observation for the same tail. Tails with no ground-truth history yet
// are skipped; absence of evidence is not a conflict. A ground-truth entry
// with no equipment observed conflicts with any curated provider.
func (r *Reconciler) Mismatches() ([]Mismatch, error) {
	entries, err := r.store.CuratedEntries()
	if err != nil {
		return nil, err
	}
	var mismatches []Mismatch
	for _, entry := range entries {
		latest, err := r.store.LatestGroundTruth(entry.TailNumber)
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryDatabase).
				Component("reconcile").
				Context("tail_number", entry.TailNumber).
				Build()
		}
		if latest == nil {
			continue
		}
		observed := ""
		if latest.HasWiFi != nil && *latest.HasWiFi && latest.Provider != nil {
			observed = *latest.Provider
		}
		if providersAgree(entry.Provider, observed) {
			continue
		}
		mismatches = append(mismatches, Mismatch{
			TailNumber:       entry.TailNumber,
			CuratedProvider:  entry.Provider,
			ObservedProvider: observed,
			ObservedAt:       latest.CheckedAt,
		})
	}
	return mismatches, nil
}

func providersAgree(curated, observed string) bool {
	return strings.EqualFold(strings.TrimSpace(curated), strings.TrimSpace(observed))
}
