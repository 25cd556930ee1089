package stats

import (
	"github.com/spf13/cobra"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/ops"
)

// Command creates the stats command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print verification counts and curated-list mismatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ops.Stats(settings)
		},
	}
}
