package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skyfleet/fleetlink/cmd/ingest"
	"github.com/skyfleet/fleetlink/cmd/prunelog"
	"github.com/skyfleet/fleetlink/cmd/stats"
	"github.com/skyfleet/fleetlink/cmd/verify"
	"github.com/skyfleet/fleetlink/cmd/watch"
	"github.com/skyfleet/fleetlink/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetlink",
		Short: "Fleet WiFi verification and discovery engine",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		verify.Command(settings),
		watch.Command(settings),
		stats.Command(settings),
		ingest.Command(settings),
		prunelog.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Output.SQLite.Path, "db", viper.GetString("output.sqlite.path"), "Path to the SQLite database")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
