package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/db"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/hydrofabric"
	"github.com/hydrofabric/basinmap/logger"
)

// VpuCmd inspects vector processing units in the hydrofabric.
var VpuCmd = &cobra.Command{
	Use:   "vpu",
	Short: "Inspect vector processing units",
	Long: `Inspect the vector processing units (VPUs) of the hydrofabric.

Examples:
  basinmap vpu ls       # List VPU identifiers
  basinmap vpu stats    # Divide counts per VPU`,
}

var vpuLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List VPU identifiers",
	RunE:  runVpuLs,
}

var vpuStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show divide counts per VPU",
	RunE:  runVpuStats,
}

func init() {
	VpuCmd.AddCommand(vpuLsCmd)
	VpuCmd.AddCommand(vpuStatsCmd)
}

func openHydrofabric() (*hydrofabric.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Named("vpu")
	conn, err := db.OpenReadOnly(cfg.Hydrofabric.Path, log)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open hydrofabric database %s", cfg.Hydrofabric.Path)
	}
	return hydrofabric.NewStore(conn, log), func() { conn.Close() }, nil
}

func runVpuLs(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openHydrofabric()
	if err != nil {
		return err
	}
	defer closeDB()

	vpus, err := store.VPUList(context.Background())
	if err != nil {
		return err
	}
	for _, vpu := range vpus {
		fmt.Println(vpu)
	}
	return nil
}

func runVpuStats(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openHydrofabric()
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := store.VPUStats(context.Background())
	if err != nil {
		return err
	}

	vpus := make([]string, 0, len(stats))
	total := 0
	for vpu, n := range stats {
		vpus = append(vpus, vpu)
		total += n
	}
	sort.Strings(vpus)

	rows := pterm.TableData{{"VPU", "Divides"}}
	for _, vpu := range vpus {
		rows = append(rows, []string{vpu, fmt.Sprintf("%d", stats[vpu])})
	}
	rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
