package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
)

// Handler names for the time-range jobs.
const (
	HandlerForcings    = "forcings"
	HandlerRealization = "realization"
)

// TimeLayout is the wire format for job time ranges.
const TimeLayout = "2006-01-02T15:04"

// TimeRange scopes forcings and realization generation to a subset output
// directory and a simulation window.
type TimeRange struct {
	ForcingDir string `json:"forcing_dir"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Validate checks the directory and window. Errors wrap ErrInvalidRequest
// so handlers can map them to 400 responses.
func (tr TimeRange) Validate() error {
	if tr.ForcingDir == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "forcing_dir is required")
	}
	info, err := os.Stat(tr.ForcingDir)
	if err != nil || !info.IsDir() {
		return errors.Wrapf(errors.ErrInvalidRequest, "forcing_dir %s is not a directory", tr.ForcingDir)
	}
	if tr.StartTime == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "start_time is required")
	}
	if tr.EndTime == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "end_time is required")
	}
	start, err := time.Parse(TimeLayout, tr.StartTime)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "start_time %q is not %s", tr.StartTime, TimeLayout)
	}
	end, err := time.Parse(TimeLayout, tr.EndTime)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "end_time %q is not %s", tr.EndTime, TimeLayout)
	}
	if !end.After(start) {
		return errors.Wrap(errors.ErrInvalidRequest, "end_time must be after start_time")
	}
	return nil
}

// Forcings writes the forcings configuration for a subset output directory
// and returns a status message.
func Forcings(ctx context.Context, tr TimeRange, log *zap.SugaredLogger) (string, error) {
	if err := tr.Validate(); err != nil {
		return "", err
	}

	cfg := map[string]interface{}{
		"forcing_dir": tr.ForcingDir,
		"start_time":  tr.StartTime,
		"end_time":    tr.EndTime,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding forcings config")
	}
	path := filepath.Join(tr.ForcingDir, "forcings.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", errors.Wrap(err, "writing forcings config")
	}

	log.Infow("Forcings configured",
		"forcing_dir", tr.ForcingDir,
		"start_time", tr.StartTime,
		"end_time", tr.EndTime)
	return "forcings written to " + path, nil
}

// ForcingsHandler runs forcings jobs from the queue.
type ForcingsHandler struct {
	log *zap.SugaredLogger
}

func NewForcingsHandler(log *zap.SugaredLogger) *ForcingsHandler {
	return &ForcingsHandler{log: log}
}

func (h *ForcingsHandler) Name() string { return HandlerForcings }

func (h *ForcingsHandler) Execute(ctx context.Context, job *Job) error {
	var tr TimeRange
	if err := json.Unmarshal(job.Payload, &tr); err != nil {
		return errors.Wrap(err, "decoding forcings payload")
	}
	result, err := Forcings(ctx, tr, h.log)
	if err != nil {
		return err
	}
	job.Result = result
	return nil
}
