package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/db"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/jobs"
	"github.com/hydrofabric/basinmap/logger"
)

// JobsCmd inspects the derived-product job queue.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the derived-product job queue",
	Long: `Inspect subset, forcings, and realization jobs in the queue database.

Examples:
  basinmap jobs ls              # List recent jobs
  basinmap jobs show <job-id>   # Show one job in full`,
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent jobs",
	RunE:  runJobsLs,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsLsLimit int

func init() {
	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
	jobsLsCmd.Flags().IntVar(&jobsLsLimit, "limit", 20, "Number of jobs to list")
}

func openJobStore() (*jobs.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Named("jobs")
	conn, err := db.OpenWithMigrations(cfg.Jobs.DBPath, log)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open job database %s", cfg.Jobs.DBPath)
	}
	return jobs.NewStore(conn), func() { conn.Close() }, nil
}

func runJobsLs(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openJobStore()
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := store.List(context.Background(), jobsLsLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		pterm.Info.Println("No jobs in the queue")
		return nil
	}

	rows := pterm.TableData{{"ID", "Handler", "Status", "Created"}}
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			job.Handler,
			string(job.Status),
			job.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openJobStore()
	if err != nil {
		return err
	}
	defer closeDB()

	job, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}
	fmt.Println(string(raw))
	return nil
}
