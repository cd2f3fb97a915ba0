package config

// Config represents the basinmap service configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Hydrofabric HydrofabricConfig `mapstructure:"hydrofabric"`
	Output      OutputConfig      `mapstructure:"output"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Settings    SettingsConfig    `mapstructure:"settings"`
}

// ServerConfig configures the basinmap web server
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HydrofabricConfig points at the hydrofabric database
type HydrofabricConfig struct {
	Path string `mapstructure:"path"` // sqlite database holding network/divides/nexus tables
}

// OutputConfig configures where derived products are written
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// JobsConfig configures the derived-product job runner
type JobsConfig struct {
	DBPath         string `mapstructure:"db_path"`         // sqlite database backing the job queue
	Workers        int    `mapstructure:"workers"`         // concurrent subset/forcings/realization jobs
	MemoryMonitor  bool   `mapstructure:"memory_monitor"`  // sample process RSS during subset jobs
	MonitorSeconds int    `mapstructure:"monitor_seconds"` // sampling interval
}

// EngineConfig tunes the layer synchronization engine
type EngineConfig struct {
	// FetchesPerSecond caps derived-geometry fetch issuance. 0 = unlimited.
	FetchesPerSecond float64 `mapstructure:"fetches_per_second"`
	FetchBurst       int     `mapstructure:"fetch_burst"`
}

// SettingsConfig configures the display-settings store
type SettingsConfig struct {
	// SyncURL, when set together with SyncEnabled, receives a POST for every
	// leaf-level settings change. Off by default.
	SyncEnabled bool   `mapstructure:"sync_enabled"`
	SyncURL     string `mapstructure:"sync_url"`
}

// Default ports. 8765 matches the original map app's dev server.
const (
	DefaultServerPort = 8765
)
