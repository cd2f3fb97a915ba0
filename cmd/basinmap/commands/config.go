package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/errors"
)

// ConfigCmd shows the effective configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after defaults, config file, and
BASINMAP_* environment variables are merged.

Examples:
  basinmap config show
  basinmap config path`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE:  runConfigPath,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding configuration")
	}
	fmt.Println(string(raw))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	path := config.ConfigFilePath()
	if path == "" {
		pterm.Info.Println("No config file found; defaults and environment variables apply")
		return nil
	}
	fmt.Println(path)
	return nil
}
