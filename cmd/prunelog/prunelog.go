package prunelog

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/ops"
)

// Command creates the prune-log command, the only path that may delete
// verification audit rows.
func Command(settings *conf.Settings) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "prune-log",
		Short: "Delete verification log entries older than a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if before == "" {
				return fmt.Errorf("--before is required")
			}
			cutoff, err := time.Parse("2006-01-02", before)
			if err != nil {
				return fmt.Errorf("invalid --before date %q, want YYYY-MM-DD: %w", before, err)
			}
			return ops.PruneLog(settings, cutoff)
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Delete entries checked before this date (YYYY-MM-DD)")

	return cmd
}
