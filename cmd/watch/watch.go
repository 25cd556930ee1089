package watch

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/ops"
	"github.com/skyfleet/fleetlink/internal/scheduler"
)

// Command creates the watch command: the long-running scheduler loop.
func Command(settings *conf.Settings) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the verification scheduler until interrupted",
		Long:  "Continuously select due aircraft and verify them. Discovery mode sweeps one aircraft per short tick for new fleets; maintenance mode runs full batches on a slower cadence.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch scheduler.Mode(mode) {
			case scheduler.ModeDiscovery, scheduler.ModeMaintenance:
			default:
				return fmt.Errorf("invalid --mode %q, want discovery or maintenance", mode)
			}
			return ops.Watch(settings, scheduler.Mode(mode))
		},
	}

	if err := setupFlags(cmd, settings, &mode); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, mode *string) error {
	cmd.Flags().StringVar(mode, "mode", string(scheduler.ModeMaintenance), "Scheduler cadence (discovery or maintenance)")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Enable Prometheus metrics endpoint")
	cmd.Flags().StringVar(&settings.Metrics.Listen, "listen", viper.GetString("metrics.listen"), "Listen address and port of metrics endpoint")

	if err := viper.BindPFlag("metrics.enabled", cmd.Flags().Lookup("metrics")); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	if err := viper.BindPFlag("metrics.listen", cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
