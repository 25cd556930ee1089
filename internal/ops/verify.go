package ops

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/scheduler"
)

// RunBatch runs one verification batch of size and prints the summary.
func RunBatch(settings *conf.Settings, size int) error {
	rt, err := NewRuntime(settings)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := rt.Scheduler.RunBatch(ctx, size)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

// VerifyTail runs one on-demand check for a single aircraft.
func VerifyTail(settings *conf.Settings, tailNumber string) error {
	rt, err := NewRuntime(settings)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := rt.Scheduler.VerifyTail(ctx, tailNumber)
	if err != nil {
		return err
	}
	aircraft, err := rt.Store.GetAircraft(tailNumber)
	if err != nil {
		return err
	}
	fmt.Printf("Tail:      %s\n", aircraft.TailNumber)
	fmt.Printf("Outcome:   %s\n", outcome)
	fmt.Printf("Status:    %s\n", aircraft.VerificationStatus)
	if aircraft.VerifiedWiFi != nil {
		fmt.Printf("Provider:  %s\n", *aircraft.VerifiedWiFi)
	}
	fmt.Printf("Next check after: %s\n", aircraft.NextCheckAfter.UTC().Format(time.RFC3339))
	return nil
}

// Watch runs the scheduler loop for mode until SIGINT or SIGTERM.
func Watch(settings *conf.Settings, mode scheduler.Mode) error {
	rt, err := NewRuntime(settings)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "fleetlink watching in %s mode, ctrl-c to stop\n", mode)
	err = rt.Scheduler.RunLoop(ctx, mode)
	if ctx.Err() != nil {
		// Operator-requested shutdown is a clean exit.
		logger.Info("watch loop stopped", "mode", string(mode))
		return nil
	}
	return err
}

func printSummary(summary *scheduler.BatchSummary) {
	if summary.BreakerOpen {
		fmt.Println("Circuit breaker open, no checks attempted.")
		return
	}
	fmt.Printf("Run %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))
	fmt.Printf("  selected:   %d\n", summary.Selected)
	fmt.Printf("  confirmed:  %d\n", summary.Confirmed)
	fmt.Printf("  negative:   %d\n", summary.Negative)
	fmt.Printf("  errors:     %d\n", summary.Errors)
	fmt.Printf("  mismatches: %d\n", summary.Mismatches)
	fmt.Printf("  no flights: %d\n", summary.NoFlights)
}

func closeRuntime(rt *Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		logger.Warn("runtime close failed", "error", err)
	}
}
