package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{})

	// Hydrofabric defaults
	v.SetDefault("hydrofabric.path", "conus.db")

	// Output defaults
	v.SetDefault("output.dir", "output")

	// Jobs defaults
	v.SetDefault("jobs.db_path", "jobs.db")
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.memory_monitor", true)
	v.SetDefault("jobs.monitor_seconds", 5)

	// Engine defaults
	v.SetDefault("engine.fetches_per_second", 0.0) // unlimited
	v.SetDefault("engine.fetch_burst", 16)

	// Settings store defaults
	v.SetDefault("settings.sync_enabled", false)
	v.SetDefault("settings.sync_url", "")
}
