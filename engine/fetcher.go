package engine

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/hydrofabric/basinmap/selection"
)

// FlowlineSet is the result of a flowline fetch for one basin: the line to
// its downstream basin, the line to its downstream nexus, and the nexus
// point itself. Any member may be nil.
type FlowlineSet struct {
	ToWB    *geojson.FeatureCollection `json:"to_wb"`
	ToNexus *geojson.FeatureCollection `json:"to_nexus"`
	Nexus   *geojson.FeatureCollection `json:"nexus"`
}

// Fetcher resolves clicks and derived geometry against the backend. The
// production implementation speaks HTTP; tests substitute fakes. Every call
// is a suspension point: engine state may change while a fetch is in flight,
// so results are re-validated against the selection before install.
type Fetcher interface {
	// ResolveClick maps a click location to a basin id. Empty id means no
	// basin at that location.
	ResolveClick(ctx context.Context, c selection.Coordinate) (string, error)

	// SelectedGeometry resolves the combined primary geometry for the whole
	// selection in one batched request.
	SelectedGeometry(ctx context.Context, sel map[string]selection.Coordinate) (*geojson.FeatureCollection, error)

	// UpstreamGeometry resolves the upstream contributing geometry for one
	// basin, keyed by derived layer name.
	UpstreamGeometry(ctx context.Context, id string) (map[string]*geojson.FeatureCollection, error)

	// Flowlines resolves the downstream flowline geometry for one basin.
	Flowlines(ctx context.Context, id string) (*FlowlineSet, error)

	// VPUBoundaries returns the bulk-selection region polygons.
	VPUBoundaries(ctx context.Context) (*geojson.FeatureCollection, error)

	// WbidsForVPU resolves a region polygon to its member basins.
	WbidsForVPU(ctx context.Context, geom *geojson.Geometry) (map[string]selection.Coordinate, error)

	// TileBounds looks up tile coverage [xmin, ymin, xmax, ymax] for a
	// basemap source URL.
	TileBounds(ctx context.Context, url string) ([4]float64, error)
}
