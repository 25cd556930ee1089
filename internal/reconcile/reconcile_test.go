package reconcile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/fleetlink/internal/datastore"
)

func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	store := datastore.New(filepath.Join(t.TempDir(), "reconcile-test.db"), false)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func seedAircraft(t *testing.T, store datastore.Interface, tail string) {
	t.Helper()
	_, err := store.UpsertAircraft(datastore.AircraftSighting{
		TailNumber: tail,
		Source:     datastore.SourceVendorSchedule,
	})
	require.NoError(t, err)
}

func groundTruth(t *testing.T, store datastore.Interface, tail string, hasWiFi bool, provider string, at time.Time) {
	t.Helper()
	entry := &datastore.VerificationLog{
		TailNumber: tail,
		Source:     datastore.SourceGroundTruth,
		CheckedAt:  at,
		HasWiFi:    &hasWiFi,
	}
	if provider != "" {
		entry.Provider = &provider
	}
	require.NoError(t, store.AppendVerificationLog(entry))
}

func TestSummary(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Now())

	for _, tail := range []string{"N1", "N2", "N3"} {
		seedAircraft(t, store, tail)
	}
	yes := true
	now := clock.Now()
	require.NoError(t, store.ApplyVerification("N1", datastore.VerificationMutation{
		Status:         datastore.StatusConfirmed,
		VerifiedWiFi:   strPtr("Starlink"),
		VerifiedAt:     &now,
		NextCheckAfter: now.Add(7 * 24 * time.Hour),
	}))
	groundTruth(t, store, "N1", yes, "Starlink", now.Add(-2*time.Hour))
	groundTruth(t, store, "N2", false, "", now.Add(-30*time.Hour))

	r := NewWithClock(store, clock)
	summary, err := r.Summary()
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalAircraft)
	assert.Equal(t, int64(1), summary.ByStatus[datastore.StatusConfirmed])
	assert.Equal(t, int64(2), summary.ByStatus[datastore.StatusUnknown])
	assert.Zero(t, summary.ByStatus[datastore.StatusNegative])
	assert.Equal(t, int64(1), summary.ChecksLast24h,
		"the 30h-old check falls outside the rolling window")
	assert.Equal(t, clock.Now(), summary.GeneratedAt)
}

func TestMismatches(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.UpsertCuratedEntries([]datastore.CuratedEntry{
		{TailNumber: "N1", Provider: "Starlink"}, // agrees
		{TailNumber: "N2", Provider: "Starlink"}, // observed different provider
		{TailNumber: "N3", Provider: "Starlink"}, // observed no equipment
		{TailNumber: "N4", Provider: "Starlink"}, // never checked, skipped
		{TailNumber: "N5", Provider: "Starlink"}, // only errored checks, skipped
	}))

	groundTruth(t, store, "N1", true, "starlink", now) // case-insensitive agreement
	groundTruth(t, store, "N2", true, "Viasat", now)
	groundTruth(t, store, "N3", false, "", now)
	errMsg := "timeout"
	require.NoError(t, store.AppendVerificationLog(&datastore.VerificationLog{
		TailNumber: "N5",
		Source:     datastore.SourceGroundTruth,
		CheckedAt:  now,
		Error:      &errMsg,
	}))

	r := New(store)
	mismatches, err := r.Mismatches()
	require.NoError(t, err)
	require.Len(t, mismatches, 2)

	byTail := map[string]Mismatch{}
	for _, m := range mismatches {
		byTail[m.TailNumber] = m
	}
	require.Contains(t, byTail, "N2")
	assert.Equal(t, "Viasat", byTail["N2"].ObservedProvider)
	require.Contains(t, byTail, "N3")
	assert.Empty(t, byTail["N3"].ObservedProvider)
}

func TestMismatchesUsesLatestObservation(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.UpsertCuratedEntries([]datastore.CuratedEntry{
		{TailNumber: "N1", Provider: "Starlink"},
	}))
	groundTruth(t, store, "N1", false, "", now.Add(-48*time.Hour))
	groundTruth(t, store, "N1", true, "Starlink", now)

	r := New(store)
	mismatches, err := r.Mismatches()
	require.NoError(t, err)
	assert.Empty(t, mismatches, "the newer observation agrees")
}

func strPtr(s string) *string { return &s }
