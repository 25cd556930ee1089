package ingest

import (
	"github.com/spf13/cobra"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/ops"
)

// Command creates the ingest command: loads the curated equipped-aircraft
// list and vendor fleet lists from JSON files.
func Command(settings *conf.Settings) *cobra.Command {
	var curatedPath string
	var fleetPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load curated and fleet lists into the registry",
		Long:  "Upsert aircraft from a vendor fleet list and/or replace curated equipped-aircraft entries. Aircraft are never deleted; known tails only have their last-seen time and missing fields refreshed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ops.Ingest(settings, curatedPath, fleetPath)
		},
	}

	cmd.Flags().StringVar(&curatedPath, "curated", "", "Path to curated list JSON file")
	cmd.Flags().StringVar(&fleetPath, "fleet", "", "Path to fleet list JSON file")

	return cmd
}
