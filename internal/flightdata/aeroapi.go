package flightdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/errors"
)

// AeroAPIClient queries the FlightAware AeroAPI scheduled-flights endpoint
// by aircraft registration.
type AeroAPIClient struct {
	*vendorClient
}

// NewAeroAPIClient creates the AeroAPI vendor client.
func NewAeroAPIClient(config conf.VendorSettings) (*AeroAPIClient, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("aeroapi API key is required").
			Category(errors.CategoryConfiguration).
			Component("aeroapi").
			Build()
	}
	return &AeroAPIClient{vendorClient: newVendorClient("aeroapi", config)}, nil
}

type aeroAPIResponse struct {
	Flights []aeroAPIFlight `json:"flights"`
}

type aeroAPIFlight struct {
	Ident  string `json:"ident"`
	Origin struct {
		CodeIATA string `json:"code_iata"`
	} `json:"origin"`
	Destination struct {
		CodeIATA string `json:"code_iata"`
	} `json:"destination"`
	ScheduledOut string `json:"scheduled_out"`
	ScheduledIn  string `json:"scheduled_in"`
}

// GetUpcomingFlights returns the aircraft's future flights, normalized to
// the marketing carrier code, ascending by departure, capped.
func (c *AeroAPIClient) GetUpcomingFlights(ctx context.Context, tailNumber string) ([]FlightUpdate, error) {
	if flights, found := c.cachedFlights(tailNumber); found {
		return flights, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	requestURL := fmt.Sprintf("%s/flights/%s", c.config.BaseURL, url.PathEscape(tailNumber))

	var response aeroAPIResponse
	err := c.getJSON(reqCtx, requestURL, map[string]string{
		"x-apikey": c.config.APIKey,
	}, &response)
	if err != nil {
		if errors.CategoryOf(err) == errors.CategoryNotFound {
			c.storeFlights(tailNumber, nil)
			return nil, nil
		}
		return nil, err
	}

	flights := make([]FlightUpdate, 0, len(response.Flights))
	for i := range response.Flights {
		update, ok := c.convert(&response.Flights[i], tailNumber)
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

func (c *AeroAPIClient) convert(f *aeroAPIFlight, tailNumber string) (FlightUpdate, bool) {
	departure, err := time.Parse(time.RFC3339, f.ScheduledOut)
	if err != nil {
		logger.Warn("Skipping flight with unparseable departure time",
			"vendor", c.name,
			"tail_number", tailNumber,
			"flight_number", f.Ident,
			"raw_time", f.ScheduledOut)
		return FlightUpdate{}, false
	}
	var arrival int64
	if t, err := time.Parse(time.RFC3339, f.ScheduledIn); err == nil {
		arrival = t.Unix()
	}
	return FlightUpdate{
		FlightNumber:  NormalizeFlightNumber(f.Ident),
		Origin:        f.Origin.CodeIATA,
		Destination:   f.Destination.CodeIATA,
		DepartureTime: departure.Unix(),
		ArrivalTime:   arrival,
	}, true
}
