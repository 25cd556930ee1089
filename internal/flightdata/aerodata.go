package flightdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/errors"
)

// AeroDataClient queries the AeroDataBox flight schedule API by aircraft
// registration.
type AeroDataClient struct {
	*vendorClient
}

// NewAeroDataClient creates the AeroDataBox vendor client.
func NewAeroDataClient(config conf.VendorSettings) (*AeroDataClient, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("aerodata API key is required").
			Category(errors.CategoryConfiguration).
			Component("aerodata").
			Build()
	}
	return &AeroDataClient{vendorClient: newVendorClient("aerodata", config)}, nil
}

// aeroDataFlight mirrors the subset of the AeroDataBox flight object we use.
type aeroDataFlight struct {
	Number    string `json:"number"`
	Departure struct {
		Airport struct {
			IATA string `json:"iata"`
		} `json:"airport"`
		ScheduledTimeUTC string `json:"scheduledTimeUtc"`
	} `json:"departure"`
	Arrival struct {
		Airport struct {
			IATA string `json:"iata"`
		} `json:"airport"`
		ScheduledTimeUTC string `json:"scheduledTimeUtc"`
	} `json:"arrival"`
}

// GetUpcomingFlights returns the aircraft's future flights, normalized to
// the marketing carrier code, ascending by departure, capped.
func (c *AeroDataClient) GetUpcomingFlights(ctx context.Context, tailNumber string) ([]FlightUpdate, error) {
	if flights, found := c.cachedFlights(tailNumber); found {
		return flights, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	requestURL := fmt.Sprintf("%s/flights/reg/%s?withCancelled=false&dateLocalRole=Departure",
		c.config.BaseURL, url.PathEscape(tailNumber))

	var raw []aeroDataFlight
	err := c.getJSON(reqCtx, requestURL, map[string]string{
		"X-RapidAPI-Key": c.config.APIKey,
	}, &raw)
	if err != nil {
		if errors.CategoryOf(err) == errors.CategoryNotFound {
			c.storeFlights(tailNumber, nil)
			return nil, nil
		}
		return nil, err
	}

	flights := make([]FlightUpdate, 0, len(raw))
	for i := range raw {
		update, ok := c.convert(&raw[i], tailNumber)
		if !ok {
			continue
		}
		flights = append(flights, update)
	}

	flights = filterUpcoming(flights, time.Now(), c.config.MaxFlights)
	c.storeFlights(tailNumber, flights)

	logger.Debug("Fetched vendor schedule",
		"vendor", c.name,
		"tail_number", tailNumber,
		"flights", len(flights))

	return flights, nil
}

func (c *AeroDataClient) convert(f *aeroDataFlight, tailNumber string) (FlightUpdate, bool) {
	departure, err := time.Parse(time.RFC3339, f.Departure.ScheduledTimeUTC)
	if err != nil {
		logger.Warn("Skipping flight with unparseable departure time",
			"vendor", c.name,
			"tail_number", tailNumber,
			"flight_number", f.Number,
			"raw_time", f.Departure.ScheduledTimeUTC)
		return FlightUpdate{}, false
	}
	var arrival int64
	if t, err := time.Parse(time.RFC3339, f.Arrival.ScheduledTimeUTC); err == nil {
		arrival = t.Unix()
	}
	return FlightUpdate{
		FlightNumber:  NormalizeFlightNumber(f.Number),
		Origin:        f.Departure.Airport.IATA,
		Destination:   f.Arrival.Airport.IATA,
		DepartureTime: departure.Unix(),
		ArrivalTime:   arrival,
	}, true
}
