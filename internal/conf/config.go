// Package conf loads and validates application settings from the
// fleetlink.yaml configuration file, environment variables, and CLI flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// VendorSettings configures one external flight-schedule provider.
type VendorSettings struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"baseurl"`
	APIKey      string        `yaml:"apikey"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cachettl"`
	RateLimitMS int           `yaml:"ratelimitms"` // minimum inter-request spacing
	MaxRetries  int           `yaml:"maxretries"`
	MaxFlights  int           `yaml:"maxflights"` // cap on future flights returned
}

// ExecutorSettings configures the isolated ground-truth worker process.
type ExecutorSettings struct {
	WorkerCommand string        `yaml:"workercommand"`
	WorkerArgs    []string      `yaml:"workerargs"`
	Timeout       time.Duration `yaml:"timeout"` // hard wall-clock limit per check
}

// SchedulerSettings configures batch sizing, cadences, and the breaker.
type SchedulerSettings struct {
	BatchSize           int           `yaml:"batchsize"`
	StaggerDelay        time.Duration `yaml:"staggerdelay"`
	BatchCooldown       time.Duration `yaml:"batchcooldown"`
	DiscoveryInterval   time.Duration `yaml:"discoveryinterval"`
	MaintenanceInterval time.Duration `yaml:"maintenanceinterval"`
	BreakerThreshold    int           `yaml:"breakerthreshold"`
	BreakerCooldown     time.Duration `yaml:"breakercooldown"`
}

// OutputSettings configures the persistent store.
type OutputSettings struct {
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
}

// MetricsSettings configures the optional Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string `yaml:"name"`
		Log  struct {
			Enabled bool   `yaml:"enabled"`
			Path    string `yaml:"path"`
		} `yaml:"log"`
	} `yaml:"main"`

	Output OutputSettings `yaml:"output"`

	Vendors struct {
		AeroData VendorSettings `yaml:"aerodata"`
		AeroAPI  VendorSettings `yaml:"aeroapi"`
	} `yaml:"vendors"`

	Executor  ExecutorSettings  `yaml:"executor"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
	Metrics   MetricsSettings   `yaml:"metrics"`

	// Provider string expected from the curated list, e.g. "Starlink".
	TargetProvider string `yaml:"targetprovider"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Cross-field validation happens at runtime assembly; read-only
	// commands work without vendor credentials.
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("fleetlink")
	viper.SetConfigType("yaml")

	for _, path := range configPaths() {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("FLEETLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus env carry the run
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// configPaths returns the config file search order.
func configPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "fleetlink"))
	}
	paths = append(paths, "/etc/fleetlink")
	return paths
}

// GetSettings returns the current settings instance, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	s := settingsInstance
	settingsMutex.RUnlock()
	if s != nil {
		return s
	}
	s, err := Load()
	if err != nil {
		return nil
	}
	return s
}
