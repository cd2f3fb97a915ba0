package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
)

// Realization writes a model realization config covering the subset output
// directory's simulation window and returns a status message.
func Realization(ctx context.Context, tr TimeRange, log *zap.SugaredLogger) (string, error) {
	if err := tr.Validate(); err != nil {
		return "", err
	}

	cfg := map[string]interface{}{
		"global": map[string]interface{}{
			"formulations": []interface{}{},
			"forcing": map[string]interface{}{
				"path":     tr.ForcingDir,
				"provider": "CsvPerFeature",
			},
		},
		"time": map[string]interface{}{
			"start_time":      tr.StartTime,
			"end_time":        tr.EndTime,
			"output_interval": 3600,
		},
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding realization config")
	}
	path := filepath.Join(tr.ForcingDir, "realization.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", errors.Wrap(err, "writing realization config")
	}

	log.Infow("Realization configured",
		"forcing_dir", tr.ForcingDir,
		"start_time", tr.StartTime,
		"end_time", tr.EndTime)
	return "realization written to " + path, nil
}

// RealizationHandler runs realization jobs from the queue.
type RealizationHandler struct {
	log *zap.SugaredLogger
}

func NewRealizationHandler(log *zap.SugaredLogger) *RealizationHandler {
	return &RealizationHandler{log: log}
}

func (h *RealizationHandler) Name() string { return HandlerRealization }

func (h *RealizationHandler) Execute(ctx context.Context, job *Job) error {
	var tr TimeRange
	if err := json.Unmarshal(job.Payload, &tr); err != nil {
		return errors.Wrap(err, "decoding realization payload")
	}
	result, err := Realization(ctx, tr, h.log)
	if err != nil {
		return err
	}
	job.Result = result
	return nil
}
