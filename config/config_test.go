package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.Jobs.Workers != 2 {
		t.Errorf("expected 2 default workers, got %d", cfg.Jobs.Workers)
	}
	if cfg.Settings.SyncEnabled {
		t.Error("settings sync should default off")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basinmap.toml")
	content := `
[server]
port = 9900

[hydrofabric]
path = "/data/conus.db"

[jobs]
workers = 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Server.Port != 9900 {
		t.Errorf("expected port 9900, got %d", cfg.Server.Port)
	}
	if cfg.Hydrofabric.Path != "/data/conus.db" {
		t.Errorf("unexpected hydrofabric path %q", cfg.Hydrofabric.Path)
	}
	if cfg.Jobs.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Jobs.Workers)
	}
	// Unset values fall back to defaults
	if cfg.Output.Dir != "output" {
		t.Errorf("expected default output dir, got %q", cfg.Output.Dir)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
