package conf

import (
	"fmt"
)

// ValidateSettings checks cross-field constraints that viper cannot express.
func ValidateSettings(s *Settings) error {
	if s.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}

	for name, v := range map[string]*VendorSettings{
		"aerodata": &s.Vendors.AeroData,
		"aeroapi":  &s.Vendors.AeroAPI,
	} {
		if !v.Enabled {
			continue
		}
		if v.BaseURL == "" {
			return fmt.Errorf("vendors.%s.baseurl is required when the vendor is enabled", name)
		}
		if v.APIKey == "" {
			return fmt.Errorf("vendors.%s.apikey is required when the vendor is enabled", name)
		}
		if v.MaxRetries < 1 {
			return fmt.Errorf("vendors.%s.maxretries must be at least 1", name)
		}
		if v.MaxFlights < 1 {
			return fmt.Errorf("vendors.%s.maxflights must be at least 1", name)
		}
	}

	if s.Scheduler.BatchSize < 1 {
		return fmt.Errorf("scheduler.batchsize must be at least 1")
	}
	if s.Scheduler.BreakerThreshold < 1 {
		return fmt.Errorf("scheduler.breakerthreshold must be at least 1")
	}
	if s.Scheduler.BreakerCooldown <= 0 {
		return fmt.Errorf("scheduler.breakercooldown must be positive")
	}
	if s.Executor.Timeout <= 0 {
		return fmt.Errorf("executor.timeout must be positive")
	}

	return nil
}
