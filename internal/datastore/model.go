// model.go this code defines the data model for the application
package datastore

import "time"

// Status is the verification state of an aircraft. An aircraft starts as
// StatusUnknown and moves to StatusConfirmed or StatusNegative on a clean
// ground-truth result. A later disagreeing ground-truth result may flip
// confirmed and negative either way, but nothing ever demotes an aircraft
// back to StatusUnknown.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusConfirmed Status = "confirmed"
	StatusNegative  Status = "negative"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusConfirmed, StatusNegative:
		return true
	}
	return false
}

// Rank orders statuses for candidate selection: unknown first, then
// negative, then confirmed.
func (s Status) Rank() int {
	switch s {
	case StatusUnknown:
		return 0
	case StatusNegative:
		return 1
	default:
		return 2
	}
}

// Verification log sources.
const (
	SourceGroundTruth    = "ground_truth"
	SourceVendorSchedule = "vendor_schedule"
	SourceCuratedList    = "curated_list"
)

// Fleet categories.
const (
	FleetExpress  = "express"
	FleetMainline = "mainline"
	FleetUnknown  = "unknown"
)

// Aircraft is one row per tail number in the fleet registry. Rows are never
// hard-deleted; status regresses only when a later ground-truth check
// disagrees.
type Aircraft struct {
	ID              uint   `gorm:"primaryKey"`
	TailNumber      string `gorm:"uniqueIndex;not null"`
	AircraftType    string // best-effort, may be empty
	FleetCategory   string `gorm:"type:varchar(16);default:unknown"`
	Operator        string
	FirstSeenAt     time.Time
	LastSeenAt      time.Time `gorm:"index:idx_aircraft_last_seen"`
	DiscoverySource string

	VerificationStatus Status     `gorm:"type:varchar(16);index:idx_aircraft_status;default:unknown"`
	VerifiedWiFi       *string    `gorm:"column:verified_wifi"` // NULL while status is unknown
	VerifiedAt         *time.Time

	DiscoveryPriority float64   `gorm:"index:idx_aircraft_priority"`
	NextCheckAfter    time.Time `gorm:"index:idx_aircraft_next_check"`
	CheckAttempts     int
	LastError         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledFlight is one upcoming flight instance for a tail number. The
// full set for a tail is replaced wholesale on each successful vendor fetch.
type ScheduledFlight struct {
	ID            uint   `gorm:"primaryKey"`
	TailNumber    string `gorm:"index:idx_flights_tail;not null"`
	FlightNumber  string
	Origin        string
	Destination   string
	DepartureTime int64 `gorm:"index:idx_flights_departure"` // epoch seconds
	ArrivalTime   int64 // epoch seconds
	RefreshedAt   time.Time
}

// VerificationLog is an append-only audit record. Every check attempt,
// success, negative result, or error, produces exactly one entry. Entries
// are deleted only by the explicit prune maintenance tool.
type VerificationLog struct {
	ID           uint   `gorm:"primaryKey"`
	TailNumber   string `gorm:"index:idx_vlog_tail;not null"`
	Source       string `gorm:"type:varchar(24);not null"`
	CheckedAt    time.Time `gorm:"index:idx_vlog_checked"`
	HasWiFi      *bool   `gorm:"column:has_wifi"` // nil means the check could not determine it
	Provider     *string
	AircraftType *string
	FlightNumber *string
	Error        *string
}

// CuratedEntry mirrors the manually curated equipped-aircraft list. The
// core consumes it read-only; only the ingest path writes it.
type CuratedEntry struct {
	ID          uint   `gorm:"primaryKey"`
	TailNumber  string `gorm:"uniqueIndex;not null"`
	Provider    string
	InstalledOn string // ISO date, informational only
	UpdatedAt   time.Time
}

// AircraftSighting is one fleet-list observation from ingestion or
// discovery, folded into the registry via UpsertAircraft.
type AircraftSighting struct {
	TailNumber    string
	AircraftType  string
	FleetCategory string
	Operator      string
	Source        string
}

// VerificationMutation carries the per-attempt registry update computed by
// the scheduler from one check outcome.
type VerificationMutation struct {
	Status         Status
	VerifiedWiFi   *string
	VerifiedAt     *time.Time
	NextCheckAfter time.Time
	CheckAttempts  int
	LastError      *string
}
