package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/db"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/hydrofabric"
	"github.com/hydrofabric/basinmap/jobs"
	"github.com/hydrofabric/basinmap/logger"
)

// SubsetCmd cuts a hydrofabric subset without going through the server.
var SubsetCmd = &cobra.Command{
	Use:   "subset <wb-id> [wb-id...]",
	Short: "Cut a hydrofabric subset for the given waterbody basins",
	Long: `Resolve the upstream network of the given waterbody basins and write a
subset of the hydrofabric (divides.geojson + metadata.json) to the output
directory.

Examples:
  basinmap subset wb-2917533
  basinmap subset wb-2917533 wb-2917534 --output ./subsets`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubset,
}

var subsetOutputDir string

func init() {
	SubsetCmd.Flags().StringVar(&subsetOutputDir, "output", "", "Output directory root (overrides config)")
}

func runSubset(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	outRoot := cfg.Output.Dir
	if subsetOutputDir != "" {
		outRoot = subsetOutputDir
	}

	log := logger.Named("subset")

	hydroDB, err := db.OpenReadOnly(cfg.Hydrofabric.Path, log)
	if err != nil {
		return errors.Wrapf(err, "failed to open hydrofabric database %s", cfg.Hydrofabric.Path)
	}
	defer hydroDB.Close()
	store := hydrofabric.NewStore(hydroDB, log)

	spinner, _ := pterm.DefaultSpinner.Start("Resolving upstream network...")
	outDir, err := jobs.Subset(context.Background(), store, outRoot, args, log)
	if err != nil {
		spinner.Fail("Subset failed")
		return err
	}
	spinner.Success("Subset written")

	pterm.Info.Printf("Output: %s\n", outDir)
	return nil
}
