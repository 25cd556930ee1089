package ops

import (
	"fmt"
	"time"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
)

// PruneLog deletes verification-log entries checked before the cutoff.
// This is the only path allowed to remove audit rows.
func PruneLog(settings *conf.Settings, before time.Time) error {
	if settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	store := datastore.New(settings.Output.SQLite.Path, settings.Debug)
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.PruneVerificationLog(before)
	if err != nil {
		return err
	}
	logger.Info("verification log pruned",
		"before", before.UTC().Format(time.RFC3339), "removed", removed)
	fmt.Printf("Pruned %d verification log entries before %s\n",
		removed, before.UTC().Format("2006-01-02"))
	return nil
}
