// Package flightdata provides rate-limited, retrying clients for the
// external flight-schedule vendors. Vendors locate an aircraft's next
// flights; they are not authoritative for the WiFi feature itself.
package flightdata

import (
	"context"
	"sort"
	"time"
)

// FlightUpdate is one upcoming flight as reported by a vendor, with the
// flight number already normalized to the marketing carrier code.
type FlightUpdate struct {
	FlightNumber  string
	Origin        string
	Destination   string
	DepartureTime int64 // epoch seconds
	ArrivalTime   int64 // epoch seconds
}

// Client is a flight-schedule vendor. A not-found response is not an error:
// a plane simply has no upcoming flights and the result is an empty list.
type Client interface {
	Name() string
	GetUpcomingFlights(ctx context.Context, tailNumber string) ([]FlightUpdate, error)
	Close()
}

// filterUpcoming keeps only flights departing after now, sorted ascending
// by departure time and capped at maxFlights.
func filterUpcoming(flights []FlightUpdate, now time.Time, maxFlights int) []FlightUpdate {
	cutoff := now.Unix()
	upcoming := make([]FlightUpdate, 0, len(flights))
	for _, f := range flights {
		if f.DepartureTime > cutoff {
			upcoming = append(upcoming, f)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].DepartureTime < upcoming[j].DepartureTime
	})
	if len(upcoming) > maxFlights {
		upcoming = upcoming[:maxFlights]
	}
	return upcoming
}
