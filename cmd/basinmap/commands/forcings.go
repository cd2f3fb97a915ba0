package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/jobs"
	"github.com/hydrofabric/basinmap/logger"
)

// ForcingsCmd writes a forcings processing configuration.
var ForcingsCmd = &cobra.Command{
	Use:   "forcings",
	Short: "Write a forcings processing configuration",
	Long: `Write forcings.json into a forcing directory for the given time range.

Times use the layout 2006-01-02T15:04.

Examples:
  basinmap forcings --dir ./output/wb-2917533_subset --start 2024-06-01T00:00 --end 2024-06-30T00:00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimeRangeCommand(cmd, jobs.Forcings)
	},
}

// RealizationCmd writes a NextGen realization configuration.
var RealizationCmd = &cobra.Command{
	Use:   "realization",
	Short: "Write a NextGen realization configuration",
	Long: `Write realization.json into a forcing directory for the given time range.

Times use the layout 2006-01-02T15:04.

Examples:
  basinmap realization --dir ./output/wb-2917533_subset --start 2024-06-01T00:00 --end 2024-06-30T00:00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimeRangeCommand(cmd, jobs.Realization)
	},
}

func init() {
	for _, c := range []*cobra.Command{ForcingsCmd, RealizationCmd} {
		c.Flags().String("dir", "", "Forcing directory (required)")
		c.Flags().String("start", "", "Start time, 2006-01-02T15:04 (required)")
		c.Flags().String("end", "", "End time, 2006-01-02T15:04 (required)")
		c.MarkFlagRequired("dir")
		c.MarkFlagRequired("start")
		c.MarkFlagRequired("end")
	}
}

func runTimeRangeCommand(cmd *cobra.Command, run func(context.Context, jobs.TimeRange, *zap.SugaredLogger) (string, error)) error {
	dir, _ := cmd.Flags().GetString("dir")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")

	tr := jobs.TimeRange{ForcingDir: dir, StartTime: start, EndTime: end}
	if err := tr.Validate(); err != nil {
		return err
	}

	result, err := run(context.Background(), tr, logger.Named(cmd.Name()))
	if err != nil {
		return err
	}
	pterm.Success.Println(result)
	return nil
}
