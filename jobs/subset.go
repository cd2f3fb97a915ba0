package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/hydrofabric"
)

// HandlerSubset names the subset job handler.
const HandlerSubset = "subset"

// SubsetRequest asks for the hydrofabric subset upstream of the given
// waterbody basins.
type SubsetRequest struct {
	WbIDs []string `json:"wb_ids"`
}

// Subset resolves the complete upstream network of the requested basins and
// writes the subset artifacts into a directory named after the first
// upstream id. Returns the output directory path.
func Subset(ctx context.Context, store *hydrofabric.Store, outputRoot string, ids []string, log *zap.SugaredLogger) (string, error) {
	if len(ids) == 0 {
		return "", errors.Wrap(errors.ErrNoSelection, "subset requires at least one wb_id")
	}

	union := make(map[string]bool)
	for _, id := range ids {
		up, err := store.UpstreamIDs(ctx, id)
		if err != nil {
			return "", errors.Wrapf(err, "resolving upstream of %s", id)
		}
		for _, u := range up {
			union[u] = true
		}
	}

	upstream := make([]string, 0, len(union))
	for id := range union {
		upstream = append(upstream, id)
	}
	sort.Strings(upstream)
	if len(upstream) == 0 {
		return "", errors.Wrap(errors.ErrNotFound, "no upstream network found")
	}

	outDir := filepath.Join(outputRoot, upstream[0]+"_subset")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating output dir %s", outDir)
	}

	fc, err := store.GeometriesFor(ctx, upstream)
	if err != nil {
		return "", errors.Wrap(err, "fetching subset geometries")
	}
	raw, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding subset geometries")
	}
	if err := os.WriteFile(filepath.Join(outDir, "divides.geojson"), raw, 0o644); err != nil {
		return "", errors.Wrap(err, "writing divides.geojson")
	}

	meta := map[string]interface{}{
		"requested_wb_ids": ids,
		"upstream_wb_ids":  upstream,
		"divide_count":     len(fc.Features),
		"created_at":       time.Now().UTC().Format(time.RFC3339),
	}
	rawMeta, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding subset metadata")
	}
	if err := os.WriteFile(filepath.Join(outDir, "metadata.json"), rawMeta, 0o644); err != nil {
		return "", errors.Wrap(err, "writing metadata.json")
	}

	log.Infow("Subset written",
		"output_dir", outDir,
		"requested", len(ids),
		"upstream", len(upstream))
	return outDir, nil
}

// SubsetHandler runs subset jobs from the queue with memory monitoring.
type SubsetHandler struct {
	store      *hydrofabric.Store
	outputRoot string
	monitor    time.Duration // 0 disables sampling
	log        *zap.SugaredLogger
}

// NewSubsetHandler creates the handler. monitorInterval of zero disables
// memory sampling.
func NewSubsetHandler(store *hydrofabric.Store, outputRoot string, monitorInterval time.Duration, log *zap.SugaredLogger) *SubsetHandler {
	return &SubsetHandler{store: store, outputRoot: outputRoot, monitor: monitorInterval, log: log}
}

func (h *SubsetHandler) Name() string { return HandlerSubset }

func (h *SubsetHandler) Execute(ctx context.Context, job *Job) error {
	var req SubsetRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return errors.Wrap(err, "decoding subset payload")
	}

	var mon *MemoryMonitor
	if h.monitor > 0 {
		mon = NewMemoryMonitor(h.monitor, h.log)
		mon.Start(ctx)
	}

	outDir, err := Subset(ctx, h.store, h.outputRoot, req.WbIDs, h.log)

	if mon != nil {
		peak := mon.Stop()
		h.log.Infow("Subset memory peak", "job_id", job.ID, "peak_rss_mb", peak/(1<<20))
	}
	if err != nil {
		return err
	}
	job.Result = outDir
	return nil
}
