package ops

import (
	"fmt"
	"time"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
	"github.com/skyfleet/fleetlink/internal/reconcile"
)

// Stats prints the reconciliation summary and any curated-list conflicts.
// It only needs the store, so vendor credentials are not required.
func Stats(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	store := datastore.New(settings.Output.SQLite.Path, settings.Debug)
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	r := reconcile.New(store)
	summary, err := r.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("Fleet: %d aircraft\n", summary.TotalAircraft)
	fmt.Printf("  unknown:   %d\n", summary.ByStatus[datastore.StatusUnknown])
	fmt.Printf("  confirmed: %d\n", summary.ByStatus[datastore.StatusConfirmed])
	fmt.Printf("  negative:  %d\n", summary.ByStatus[datastore.StatusNegative])
	fmt.Printf("Checks in last 24h: %d\n", summary.ChecksLast24h)

	mismatches, err := r.Mismatches()
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		fmt.Println("No curated-list mismatches.")
		return nil
	}
	fmt.Printf("Curated-list mismatches: %d\n", len(mismatches))
	for _, m := range mismatches {
		observed := m.ObservedProvider
		if observed == "" {
			observed = "(none observed)"
		}
		fmt.Printf("  %-8s curated=%s observed=%s at %s\n",
			m.TailNumber, m.CuratedProvider, observed,
			m.ObservedAt.UTC().Format(time.RFC3339))
	}
	return nil
}
