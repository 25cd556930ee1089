// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FleetLink")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/fleetlink.log")

	viper.SetDefault("output.sqlite.path", "fleetlink.db")

	viper.SetDefault("targetprovider", "Starlink")

	viper.SetDefault("vendors.aerodata.enabled", true)
	viper.SetDefault("vendors.aerodata.baseurl", "https://aerodatabox.p.rapidapi.com")
	viper.SetDefault("vendors.aerodata.timeout", 15*time.Second)
	viper.SetDefault("vendors.aerodata.cachettl", 30*time.Minute)
	viper.SetDefault("vendors.aerodata.ratelimitms", 1200)
	viper.SetDefault("vendors.aerodata.maxretries", 4)
	viper.SetDefault("vendors.aerodata.maxflights", 10)

	viper.SetDefault("vendors.aeroapi.enabled", false)
	viper.SetDefault("vendors.aeroapi.baseurl", "https://aeroapi.flightaware.com/aeroapi")
	viper.SetDefault("vendors.aeroapi.timeout", 15*time.Second)
	viper.SetDefault("vendors.aeroapi.cachettl", 30*time.Minute)
	viper.SetDefault("vendors.aeroapi.ratelimitms", 1000)
	viper.SetDefault("vendors.aeroapi.maxretries", 4)
	viper.SetDefault("vendors.aeroapi.maxflights", 10)

	viper.SetDefault("executor.workercommand", "")
	viper.SetDefault("executor.workerargs", []string{})
	viper.SetDefault("executor.timeout", 60*time.Second)

	viper.SetDefault("scheduler.batchsize", 3)
	viper.SetDefault("scheduler.staggerdelay", 2*time.Second)
	viper.SetDefault("scheduler.batchcooldown", 15*time.Second)
	viper.SetDefault("scheduler.discoveryinterval", 30*time.Second)
	viper.SetDefault("scheduler.maintenanceinterval", 90*time.Second)
	viper.SetDefault("scheduler.breakerthreshold", 5)
	viper.SetDefault("scheduler.breakercooldown", 30*time.Minute)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "0.0.0.0:9090")
}
