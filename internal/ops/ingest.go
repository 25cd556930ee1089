package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/datastore"
	"github.com/skyfleet/fleetlink/internal/errors"
)

// curatedFileEntry is one row of the curated equipped-aircraft list file.
type curatedFileEntry struct {
	TailNumber  string `json:"tail_number"`
	Provider    string `json:"provider"`
	InstalledOn string `json:"installed_on,omitempty"`
}

// fleetFileEntry is one row of a vendor-sourced fleet list file.
type fleetFileEntry struct {
	TailNumber    string `json:"tail_number"`
	AircraftType  string `json:"aircraft_type,omitempty"`
	FleetCategory string `json:"fleet_category,omitempty"`
	Operator      string `json:"operator,omitempty"`
	Source        string `json:"source,omitempty"`
}

// Ingest loads the curated list and/or a fleet list from JSON files into
// the store. Fleet rows are upserted as sightings: existing aircraft only
// have their last-seen timestamp and missing descriptive fields refreshed,
// and nothing is ever deleted.
func Ingest(settings *conf.Settings, curatedPath, fleetPath string) error {
	if curatedPath == "" && fleetPath == "" {
		return fmt.Errorf("nothing to ingest, provide --curated and/or --fleet")
	}
	if settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	store := datastore.New(settings.Output.SQLite.Path, settings.Debug)
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	if curatedPath != "" {
		n, err := ingestCurated(store, curatedPath, settings.TargetProvider)
		if err != nil {
			return err
		}
		fmt.Printf("Curated list: %d entries upserted\n", n)
	}
	if fleetPath != "" {
		n, err := ingestFleet(store, fleetPath)
		if err != nil {
			return err
		}
		fmt.Printf("Fleet list: %d aircraft upserted\n", n)
	}
	return nil
}

func ingestCurated(store datastore.Interface, path, defaultProvider string) (int, error) {
	var rows []curatedFileEntry
	if err := readJSONFile(path, &rows); err != nil {
		return 0, err
	}
	entries := make([]datastore.CuratedEntry, 0, len(rows))
	for _, row := range rows {
		if row.TailNumber == "" {
			continue
		}
		provider := row.Provider
		if provider == "" {
			provider = defaultProvider
		}
		entries = append(entries, datastore.CuratedEntry{
			TailNumber:  row.TailNumber,
			Provider:    provider,
			InstalledOn: row.InstalledOn,
		})
	}
	if err := store.UpsertCuratedEntries(entries); err != nil {
		return 0, err
	}
	logger.Info("curated list ingested", "path", path, "entries", len(entries))
	return len(entries), nil
}

func ingestFleet(store datastore.Interface, path string) (int, error) {
	var rows []fleetFileEntry
	if err := readJSONFile(path, &rows); err != nil {
		return 0, err
	}
	count := 0
	for _, row := range rows {
		if row.TailNumber == "" {
			continue
		}
		source := row.Source
		if source == "" {
			source = datastore.SourceVendorSchedule
		}
		_, err := store.UpsertAircraft(datastore.AircraftSighting{
			TailNumber:    row.TailNumber,
			AircraftType:  row.AircraftType,
			FleetCategory: row.FleetCategory,
			Operator:      row.Operator,
			Source:        source,
		})
		if err != nil {
			return count, err
		}
		count++
	}
	logger.Info("fleet list ingested", "path", path, "aircraft", count)
	return count, nil
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Component("ops").
			Context("path", path).
			Build()
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileParsing).
			Component("ops").
			Context("path", path).
			Build()
	}
	return nil
}
