// Package ops assembles the runtime from configuration and backs each CLI
// subcommand with one entry point.
package ops

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
	"github.com/skyfleet/fleetlink/internal/errors"
	"github.com/skyfleet/fleetlink/internal/executor"
	"github.com/skyfleet/fleetlink/internal/flightdata"
	"github.com/skyfleet/fleetlink/internal/logging"
	"github.com/skyfleet/fleetlink/internal/observability"
	"github.com/skyfleet/fleetlink/internal/scheduler"
)

// Package-level logger specific to the ops service
var logger *slog.Logger

func init() {
	var err error
	logFilePath := filepath.Join("logs", "ops.log")
	logger, _, err = logging.NewFileLogger(logFilePath, "ops", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize ops file logger: %v", err)
		logger = logging.ForService("ops")
	}
}

// Runtime holds the assembled collaborators for one process lifetime.
type Runtime struct {
	Settings  *conf.Settings
	Store     datastore.Interface
	Vendors   []flightdata.Client
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics

	endpoint *observability.Endpoint
}

// NewRuntime validates settings, opens the store, and wires vendors,
// executor, metrics, and scheduler. Any failure here is an unrecoverable
// setup failure and the process should exit non-zero.
func NewRuntime(settings *conf.Settings) (*Runtime, error) {
	if err := conf.ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("ops").
			Build()
	}

	store := datastore.New(settings.Output.SQLite.Path, settings.Debug)
	if err := store.Open(); err != nil {
		return nil, err
	}

	vendors, err := buildVendors(settings)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	exec, err := executor.New(settings.Executor)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var metrics *observability.Metrics
	var endpoint *observability.Endpoint
	if settings.Metrics.Enabled {
		metrics, err = observability.NewMetrics()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		endpoint = observability.NewEndpoint(settings.Metrics.Listen, metrics)
		endpoint.Start()
	}

	rt := &Runtime{
		Settings:  settings,
		Store:     store,
		Vendors:   vendors,
		Metrics:   metrics,
		Scheduler: scheduler.New(store, vendors, exec, metrics, settings.Scheduler),
		endpoint:  endpoint,
	}
	logger.Info("runtime assembled",
		"db_path", settings.Output.SQLite.Path,
		"vendors", len(vendors),
		"metrics_enabled", settings.Metrics.Enabled)
	return rt, nil
}

// buildVendors instantiates the enabled vendor clients in priority order.
func buildVendors(settings *conf.Settings) ([]flightdata.Client, error) {
	var vendors []flightdata.Client
	if settings.Vendors.AeroData.Enabled {
		client, err := flightdata.NewAeroDataClient(settings.Vendors.AeroData)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, client)
	}
	if settings.Vendors.AeroAPI.Enabled {
		client, err := flightdata.NewAeroAPIClient(settings.Vendors.AeroAPI)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, client)
	}
	if len(vendors) == 0 {
		return nil, fmt.Errorf("no flight-schedule vendor enabled, verification cannot find flights to check")
	}
	return vendors, nil
}

// Close releases everything NewRuntime acquired.
func (rt *Runtime) Close(shutdownCtx context.Context) error {
	for _, vendor := range rt.Vendors {
		vendor.Close()
	}
	if rt.endpoint != nil {
		if err := rt.endpoint.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics endpoint shutdown failed", "error", err)
		}
	}
	return rt.Store.Close()
}
