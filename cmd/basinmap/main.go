package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydrofabric/basinmap/cmd/basinmap/commands"
	"github.com/hydrofabric/basinmap/logger"
)

var rootCmd = &cobra.Command{
	Use:   "basinmap",
	Short: "basinmap - Interactive hydrofabric catchment explorer",
	Long: `basinmap - Interactive catchment selection over the NextGen hydrofabric.

basinmap serves a map API for selecting waterbody catchments, tracing their
upstream networks, and cutting hydrofabric subsets for model runs.

Available commands:
  serve       - Start the map server (HTTP API + WebSocket overlay stream)
  subset      - Cut a hydrofabric subset for selected catchments
  forcings    - Write a forcings processing configuration
  realization - Write a NextGen realization configuration
  vpu         - Inspect vector processing units
  config      - Show the effective configuration
  jobs        - Inspect the derived-product job queue

Examples:
  basinmap serve                     # Start the map server
  basinmap subset wb-2917533         # Subset the upstream network of a basin
  basinmap vpu stats                 # Divide counts per VPU
  basinmap jobs ls                   # List recent jobs`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit JSON structured logs instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.SubsetCmd)
	rootCmd.AddCommand(commands.ForcingsCmd)
	rootCmd.AddCommand(commands.RealizationCmd)
	rootCmd.AddCommand(commands.VpuCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
