package verify

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/ops"
)

// Command creates the verify command: one manually triggered batch, or a
// single on-demand tail check.
func Command(settings *conf.Settings) *cobra.Command {
	var batchSize int
	var tailNumber string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run one verification batch or check a single aircraft",
		Long:  "Run one batch of ground-truth WiFi checks against due aircraft, or force a check for one tail number, then print the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tailNumber != "" {
				return ops.VerifyTail(settings, tailNumber)
			}
			if batchSize < 1 {
				return fmt.Errorf("--batch must be at least 1")
			}
			return ops.RunBatch(settings, batchSize)
		},
	}

	if err := setupFlags(cmd, settings, &batchSize, &tailNumber); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, batchSize *int, tailNumber *string) error {
	cmd.Flags().IntVar(batchSize, "batch", settings.Scheduler.BatchSize, "Number of aircraft to check in this batch")
	cmd.Flags().StringVar(tailNumber, "tail", "", "Check a single tail number instead of a batch")
	cmd.Flags().StringVar(&settings.Executor.WorkerCommand, "worker", viper.GetString("executor.workercommand"), "Ground-truth worker command")

	if err := viper.BindPFlag("executor.workercommand", cmd.Flags().Lookup("worker")); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
