package flightdata

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/patrickmn/go-cache"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/errors"
	"github.com/skyfleet/fleetlink/internal/logging"
)

// Package-level logger specific to the flightdata service
var logger *slog.Logger

func init() {
	var err error
	logFilePath := filepath.Join("logs", "flightdata.log")
	logger, _, err = logging.NewFileLogger(logFilePath, "flightdata", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize flightdata file logger: %v", err)
		logger = logging.ForService("flightdata")
	}
}

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second

	// Jitter stays within the 10-50% band around the doubled base delay, so
	// retry waits are guaranteed to strictly increase attempt over attempt.
	backoffMultiplier    = 2.0
	backoffRandomization = 0.25
)

// vendorClient is the shared plumbing both vendor implementations build on:
// a one-token rate limiter, a TTL response cache, and retrying JSON fetch.
type vendorClient struct {
	name        string
	config      conf.VendorSettings
	httpClient  *http.Client
	cache       *cache.Cache
	rateLimiter *time.Ticker
	mu          sync.Mutex
	lastRequest time.Time

	// Shortened by tests; production uses the defaults.
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func newVendorClient(name string, config conf.VendorSettings) *vendorClient {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 30 * time.Minute
	}
	if config.RateLimitMS == 0 {
		config.RateLimitMS = 1000
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 4
	}
	if config.MaxFlights == 0 {
		config.MaxFlights = 10
	}

	client := &vendorClient{
		name:           name,
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		cache:          cache.New(config.CacheTTL, config.CacheTTL*2),
		rateLimiter:    time.NewTicker(time.Duration(config.RateLimitMS) * time.Millisecond),
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}

	logger.Info("Vendor client initialized",
		"vendor", name,
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS,
		"api_key_configured", config.APIKey != "")

	return client
}

// Close stops the rate limiter ticker.
func (c *vendorClient) Close() {
	c.rateLimiter.Stop()
}

// Name returns the vendor identifier used in logs and metrics.
func (c *vendorClient) Name() string {
	return c.name
}

// errFlightsNotFound signals a 404: the tail has no schedule at this vendor.
var errFlightsNotFound = errors.Newf("no upcoming flights known to vendor").
	Category(errors.CategoryNotFound).
	Component("flightdata").
	Build()

// doRequest performs one rate-limited GET and decodes the JSON response.
func (c *vendorClient) doRequest(ctx context.Context, url string, headers map[string]string, result any) error {
	// One token: block until the minimum inter-request interval has passed.
	c.mu.Lock()
	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
		c.mu.Unlock()
		return ctx.Err()
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component(c.name).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Vendor request failed",
			"vendor", c.name,
			"url", url,
			"error", err)
		return errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component(c.name).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Component(c.name).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp.StatusCode, url, bodyBytes)
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			preview := string(bodyBytes)
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			logger.Error("Failed to parse vendor response",
				"vendor", c.name,
				"url", url,
				"response_preview", preview,
				"error", err)
			return errors.Newf("failed to parse response: %w", err).
				Category(errors.CategoryFileParsing).
				Context("url", url).
				Component(c.name).
				Build()
		}
	}

	logger.Debug("Vendor request successful",
		"vendor", c.name,
		"url", url,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_size", len(bodyBytes))

	return nil
}

// statusError classifies a non-2xx vendor response.
func (c *vendorClient) statusError(statusCode int, url string, body []byte) error {
	switch statusCode {
	case http.StatusNotFound:
		return errFlightsNotFound
	case http.StatusTooManyRequests:
		logger.Warn("Vendor rate limit response",
			"vendor", c.name,
			"url", url)
		return errors.Newf("vendor rate limited").
			Category(errors.CategoryVendorRateLimit).
			Context("status_code", statusCode).
			Context("url", url).
			Component(c.name).
			Build()
	case http.StatusUnauthorized, http.StatusForbidden:
		logger.Error("Vendor authentication failed",
			"vendor", c.name,
			"status_code", statusCode,
			"url", url,
			"message", "Check the vendor API key in the configuration")
		return errors.Newf("vendor authentication failed (status %d)", statusCode).
			Category(errors.CategoryConfiguration).
			Context("status_code", statusCode).
			Context("url", url).
			Component(c.name).
			Build()
	default:
		preview := string(body)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		logger.Error("Vendor error response",
			"vendor", c.name,
			"status_code", statusCode,
			"url", url,
			"response_preview", preview)
		category := errors.CategoryVendor
		if statusCode >= 500 {
			category = errors.CategoryNetwork
		}
		return errors.Newf("vendor error (status %d)", statusCode).
			Category(category).
			Context("status_code", statusCode).
			Context("url", url).
			Component(c.name).
			Build()
	}
}

// getJSON wraps doRequest with exponential backoff for rate-limit and
// transient failures, bounded by the configured attempt count. Exhausting
// retries on 429s surfaces the rate-limit error to the caller.
func (c *vendorClient) getJSON(ctx context.Context, url string, headers map[string]string, result any) error {
	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := c.doRequest(ctx, url, headers, result)
		if err == nil {
			return struct{}{}, nil
		}
		switch errors.CategoryOf(err) {
		case errors.CategoryVendorRateLimit, errors.CategoryNetwork:
			if attempt > 1 {
				logger.Warn("Vendor request failed, retrying",
					"vendor", c.name,
					"attempt", attempt,
					"url", url,
					"error", err.Error())
			}
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	bo.Multiplier = backoffMultiplier
	bo.RandomizationFactor = backoffRandomization

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.config.MaxRetries)))
	return err
}

// cachedFlights returns the cached schedule for a tail, if fresh.
func (c *vendorClient) cachedFlights(tailNumber string) ([]FlightUpdate, bool) {
	if cached, found := c.cache.Get(tailNumber); found {
		if flights, ok := cached.([]FlightUpdate); ok {
			logger.Debug("Vendor schedule cache hit",
				"vendor", c.name,
				"tail_number", tailNumber,
				"flights", len(flights))
			return flights, true
		}
	}
	return nil, false
}

// storeFlights caches the schedule for a tail.
func (c *vendorClient) storeFlights(tailNumber string, flights []FlightUpdate) {
	c.cache.Set(tailNumber, flights, cache.DefaultExpiration)
}
