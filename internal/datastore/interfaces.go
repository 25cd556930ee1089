// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skyfleet/fleetlink/internal/errors"
	"github.com/skyfleet/fleetlink/internal/logging"
)

// Package-level logger specific to datastore operations
var logger *slog.Logger

func init() {
	var err error
	logFilePath := filepath.Join("logs", "datastore.log")
	logger, _, err = logging.NewFileLogger(logFilePath, "datastore", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize datastore file logger: %v", err)
		logger = logging.ForService("datastore")
	}
}

// departureSanityFloor rejects corrupted or zero departure timestamps.
// 2015-01-01T00:00:00Z; nothing the vendors return can legitimately be older.
const departureSanityFloor = int64(1420070400)

// Interface abstracts the underlying database implementation and defines
// the operations the scheduler, reconciler, and ingest paths rely on.
type Interface interface {
	Open() error
	Close() error

	// Fleet registry
	UpsertAircraft(sighting AircraftSighting) (*Aircraft, error)
	GetAircraft(tailNumber string) (*Aircraft, error)
	GetAircraftByStatus(status Status) ([]Aircraft, error)
	NextVerificationCandidates(limit int, now time.Time) ([]Aircraft, error)
	ApplyVerification(tailNumber string, mutation VerificationMutation) error
	SetDiscoveryPriority(tailNumber string, priority float64) error

	// Scheduled flights
	ReplaceFlights(tailNumber string, flights []ScheduledFlight) error
	UpcomingFlights(tailNumber string, now time.Time, limit int) ([]ScheduledFlight, error)

	// Verification audit log
	AppendVerificationLog(entry *VerificationLog) error
	VerificationHistory(tailNumber string, limit int) ([]VerificationLog, error)
	LatestGroundTruth(tailNumber string) (*VerificationLog, error)
	PruneVerificationLog(before time.Time) (int64, error)

	// Curated list (read-only to the core, written by ingest)
	UpsertCuratedEntries(entries []CuratedEntry) error
	CuratedEntries() ([]CuratedEntry, error)

	// Stats reads
	CountByStatus() (map[Status]int64, error)
	ChecksSince(t time.Time) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// dbError wraps a gorm failure with the datastore category so callers can
// distinguish store failures (fatal to a run) from per-aircraft failures.
func dbError(err error, op, tail string) error {
	builder := errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", op)
	if tail != "" {
		builder = builder.Context("tail_number", tail)
	}
	return builder.Build()
}

// UpsertAircraft creates the registry row on first sighting or refreshes
// last-seen and best-effort attributes on a repeat sighting.
func (ds *DataStore) UpsertAircraft(sighting AircraftSighting) (*Aircraft, error) {
	now := time.Now()

	var aircraft Aircraft
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tail_number = ?", sighting.TailNumber).First(&aircraft).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			aircraft = Aircraft{
				TailNumber:         sighting.TailNumber,
				AircraftType:       sighting.AircraftType,
				FleetCategory:      normalizeFleetCategory(sighting.FleetCategory),
				Operator:           sighting.Operator,
				FirstSeenAt:        now,
				LastSeenAt:         now,
				DiscoverySource:    sighting.Source,
				VerificationStatus: StatusUnknown,
				NextCheckAfter:     now,
			}
			return tx.Create(&aircraft).Error
		case err != nil:
			return err
		}

		updates := map[string]any{"last_seen_at": now}
		if aircraft.AircraftType == "" && sighting.AircraftType != "" {
			updates["aircraft_type"] = sighting.AircraftType
		}
		if aircraft.FleetCategory == FleetUnknown && sighting.FleetCategory != "" {
			updates["fleet_category"] = normalizeFleetCategory(sighting.FleetCategory)
		}
		if aircraft.Operator == "" && sighting.Operator != "" {
			updates["operator"] = sighting.Operator
		}
		if err := tx.Model(&aircraft).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("tail_number = ?", sighting.TailNumber).First(&aircraft).Error
	})
	if err != nil {
		return nil, dbError(err, "upsert_aircraft", sighting.TailNumber)
	}
	return &aircraft, nil
}

func normalizeFleetCategory(category string) string {
	switch category {
	case FleetExpress, FleetMainline:
		return category
	default:
		return FleetUnknown
	}
}

// GetAircraft retrieves a registry row by tail number.
func (ds *DataStore) GetAircraft(tailNumber string) (*Aircraft, error) {
	var aircraft Aircraft
	if err := ds.DB.Where("tail_number = ?", tailNumber).First(&aircraft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("aircraft not found: %s", tailNumber).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Context("tail_number", tailNumber).
				Build()
		}
		return nil, dbError(err, "get_aircraft", tailNumber)
	}
	return &aircraft, nil
}

// GetAircraftByStatus lists registry rows in one verification state.
func (ds *DataStore) GetAircraftByStatus(status Status) ([]Aircraft, error) {
	var aircraft []Aircraft
	err := ds.DB.Where("verification_status = ?", status).
		Order("discovery_priority DESC").
		Find(&aircraft).Error
	if err != nil {
		return nil, dbError(err, "get_by_status", "")
	}
	return aircraft, nil
}

// NextVerificationCandidates returns eligible aircraft ordered by status
// rank (unknown, negative, confirmed), then descending discovery priority,
// then most recently seen.
func (ds *DataStore) NextVerificationCandidates(limit int, now time.Time) ([]Aircraft, error) {
	var candidates []Aircraft
	err := ds.DB.Where("next_check_after <= ?", now).
		Order(statusRankSQL).
		Order("discovery_priority DESC").
		Order("last_seen_at DESC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, dbError(err, "next_candidates", "")
	}
	return candidates, nil
}

// statusRankSQL mirrors Status.Rank for the selection query.
const statusRankSQL = "CASE verification_status WHEN 'unknown' THEN 0 WHEN 'negative' THEN 1 ELSE 2 END"

// ApplyVerification folds one check outcome into the registry row. The
// invariant that an unknown aircraft carries no verified provider is
// enforced here as the last line of defense.
func (ds *DataStore) ApplyVerification(tailNumber string, mutation VerificationMutation) error {
	if !mutation.Status.Valid() {
		return errors.Newf("invalid verification status: %q", mutation.Status).
			Category(errors.CategoryValidation).
			Component("datastore").
			Build()
	}
	if mutation.Status == StatusUnknown && mutation.VerifiedWiFi != nil {
		return errors.Newf("unknown status cannot carry a verified provider").
			Category(errors.CategoryValidation).
			Component("datastore").
			Context("tail_number", tailNumber).
			Build()
	}

	updates := map[string]any{
		"verification_status": mutation.Status,
		"verified_wifi":       mutation.VerifiedWiFi,
		"verified_at":         mutation.VerifiedAt,
		"next_check_after":    mutation.NextCheckAfter,
		"check_attempts":      mutation.CheckAttempts,
		"last_error":          mutation.LastError,
	}

	result := ds.DB.Model(&Aircraft{}).Where("tail_number = ?", tailNumber).Updates(updates)
	if result.Error != nil {
		return dbError(result.Error, "apply_verification", tailNumber)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("aircraft not found: %s", tailNumber).
			Category(errors.CategoryNotFound).
			Component("datastore").
			Context("tail_number", tailNumber).
			Build()
	}
	return nil
}

// SetDiscoveryPriority updates the queue-ordering score for one aircraft.
func (ds *DataStore) SetDiscoveryPriority(tailNumber string, priority float64) error {
	err := ds.DB.Model(&Aircraft{}).
		Where("tail_number = ?", tailNumber).
		Update("discovery_priority", priority).Error
	if err != nil {
		return dbError(err, "set_priority", tailNumber)
	}
	return nil
}

// ReplaceFlights swaps the scheduled-flight set for a tail number in one
// transaction so a concurrent reader never observes a half-updated set.
// Flights with departures below the sanity floor are corrupt vendor data
// and are dropped rather than stored.
func (ds *DataStore) ReplaceFlights(tailNumber string, flights []ScheduledFlight) error {
	now := time.Now()
	kept := make([]ScheduledFlight, 0, len(flights))
	for _, f := range flights {
		if f.DepartureTime < departureSanityFloor {
			logger.Warn("Dropping flight with implausible departure",
				"tail_number", tailNumber,
				"flight_number", f.FlightNumber,
				"departure_time", f.DepartureTime)
			continue
		}
		f.TailNumber = tailNumber
		f.RefreshedAt = now
		kept = append(kept, f)
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tail_number = ?", tailNumber).Delete(&ScheduledFlight{}).Error; err != nil {
			return err
		}
		if len(kept) == 0 {
			return nil
		}
		return tx.Create(&kept).Error
	})
	if err != nil {
		return dbError(err, "replace_flights", tailNumber)
	}
	return nil
}

// UpcomingFlights returns future flights for a tail in ascending departure
// order. Corrupt rows below the sanity floor are purged on detection and
// never returned.
func (ds *DataStore) UpcomingFlights(tailNumber string, now time.Time, limit int) ([]ScheduledFlight, error) {
	purge := ds.DB.Where("tail_number = ? AND departure_time < ?", tailNumber, departureSanityFloor).
		Delete(&ScheduledFlight{})
	if purge.Error != nil {
		return nil, dbError(purge.Error, "purge_flights", tailNumber)
	}
	if purge.RowsAffected > 0 {
		logger.Warn("Purged corrupt scheduled flights",
			"tail_number", tailNumber,
			"rows", purge.RowsAffected)
	}

	var flights []ScheduledFlight
	err := ds.DB.Where("tail_number = ? AND departure_time > ?", tailNumber, now.Unix()).
		Order("departure_time ASC").
		Limit(limit).
		Find(&flights).Error
	if err != nil {
		return nil, dbError(err, "upcoming_flights", tailNumber)
	}
	return flights, nil
}

// AppendVerificationLog appends one audit record. The log is append-only;
// nothing in the core updates or deletes entries.
func (ds *DataStore) AppendVerificationLog(entry *VerificationLog) error {
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = time.Now()
	}
	if err := ds.DB.Create(entry).Error; err != nil {
		return dbError(err, "append_log", entry.TailNumber)
	}
	return nil
}

// VerificationHistory returns the most recent audit entries for a tail.
func (ds *DataStore) VerificationHistory(tailNumber string, limit int) ([]VerificationLog, error) {
	var entries []VerificationLog
	err := ds.DB.Where("tail_number = ?", tailNumber).
		Order("checked_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, dbError(err, "history", tailNumber)
	}
	return entries, nil
}

// LatestGroundTruth returns the newest clean ground-truth observation for
// a tail. Errored attempts observe nothing and are skipped; nil with no
// error means the aircraft has never been cleanly checked.
func (ds *DataStore) LatestGroundTruth(tailNumber string) (*VerificationLog, error) {
	var entry VerificationLog
	err := ds.DB.Where("tail_number = ? AND source = ? AND has_wifi IS NOT NULL", tailNumber, SourceGroundTruth).
		Order("checked_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err, "latest_ground_truth", tailNumber)
	}
	return &entry, nil
}

// PruneVerificationLog is the explicit maintenance path allowed to delete
// audit rows. Returns the number of rows removed.
func (ds *DataStore) PruneVerificationLog(before time.Time) (int64, error) {
	result := ds.DB.Where("checked_at < ?", before).Delete(&VerificationLog{})
	if result.Error != nil {
		return 0, dbError(result.Error, "prune_log", "")
	}
	logger.Info("Pruned verification log", "before", before, "rows", result.RowsAffected)
	return result.RowsAffected, nil
}

// UpsertCuratedEntries replaces curated rows by tail number.
func (ds *DataStore) UpsertCuratedEntries(entries []CuratedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	for i := range entries {
		entries[i].UpdatedAt = now
	}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tail_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider", "installed_on", "updated_at"}),
	}).Create(&entries).Error
	if err != nil {
		return dbError(err, "upsert_curated", "")
	}
	return nil
}

// CuratedEntries lists the curated source-of-truth rows.
func (ds *DataStore) CuratedEntries() ([]CuratedEntry, error) {
	var entries []CuratedEntry
	if err := ds.DB.Order("tail_number ASC").Find(&entries).Error; err != nil {
		return nil, dbError(err, "curated_entries", "")
	}
	return entries, nil
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	return sqlDB.Close()
}
