package engine

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
)

// ClickResult describes the outcome of one map click.
type ClickResult struct {
	WbID     string `json:"wb_id"`
	Selected bool   `json:"selected"`
}

// Controller translates raw map interactions into selection mutations.
// Every mutation, single click or bulk group click, triggers exactly one
// synchronization pass after it completes.
type Controller struct {
	sel     *selection.State
	eng     *Engine
	fetcher Fetcher
	log     *zap.SugaredLogger
}

// NewController wires map interactions to the selection and engine.
func NewController(sel *selection.State, eng *Engine, fetcher Fetcher, log *zap.SugaredLogger) *Controller {
	return &Controller{sel: sel, eng: eng, fetcher: fetcher, log: log}
}

// HandleClick resolves a click location to a basin and toggles it. A failed
// resolution leaves the selection unchanged; a click that hits no basin is
// a no-op.
func (c *Controller) HandleClick(ctx context.Context, coord selection.Coordinate) (ClickResult, error) {
	id, err := c.fetcher.ResolveClick(ctx, coord)
	if err != nil {
		c.log.Errorw("Click resolution failed",
			"lat", coord.Lat,
			"lng", coord.Lng,
			"error", err)
		return ClickResult{}, errors.Wrap(err, "resolving click")
	}
	if id == "" {
		c.log.Debugw("Click hit no basin", "lat", coord.Lat, "lng", coord.Lng)
		return ClickResult{}, nil
	}

	selected := c.sel.Toggle(id, coord)
	c.log.Infow("Basin toggled",
		"wb_id", id,
		"selected", selected,
		"total", c.sel.Len())

	c.eng.Sync(ctx)
	return ClickResult{WbID: id, Selected: selected}, nil
}

// HandleVPUClick toggles a whole VPU region. The member set is fetched once
// per region and cached; a failed fetch leaves the selection unchanged.
func (c *Controller) HandleVPUClick(ctx context.Context, vpu string, geom *geojson.Geometry) (active bool, count int, err error) {
	active, count, err = c.sel.ToggleGroup(ctx, vpu, func(ctx context.Context) (map[string]selection.Coordinate, error) {
		return c.fetcher.WbidsForVPU(ctx, geom)
	})
	if err != nil {
		c.log.Errorw("VPU member fetch failed", "vpu", vpu, "error", err)
		return false, 0, errors.Wrapf(err, "resolving vpu %s", vpu)
	}

	c.log.Infow("VPU toggled",
		"vpu", vpu,
		"active", active,
		"members", count,
		"total", c.sel.Len())

	c.eng.Sync(ctx)
	return active, count, nil
}

// LoadBoundaries fetches the VPU region polygons and installs them as a
// single boundary overlay.
func (c *Controller) LoadBoundaries(ctx context.Context) error {
	fc, err := c.fetcher.VPUBoundaries(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching vpu boundaries")
	}

	surface := c.eng.reg.Surface()
	h := surface.Create(layers.LayerVPUBoundaries, fc, c.eng.reg.StyleFor(layers.LayerVPUBoundaries))
	if c.eng.reg.Visible(layers.LayerVPUBoundaries) {
		surface.Add(h)
	}
	c.eng.reg.Register(layers.LayerVPUBoundaries, layers.NewSingle(h))

	c.log.Infow("VPU boundaries loaded", "features", len(fc.Features))
	return nil
}

// TileBounds proxies a tile coverage lookup for basemap configuration.
func (c *Controller) TileBounds(ctx context.Context, url string) ([4]float64, error) {
	return c.fetcher.TileBounds(ctx, url)
}

// Selection exposes the underlying selection state.
func (c *Controller) Selection() *selection.State {
	return c.sel
}
