package hydrofabric

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/engine"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/internal/httpclient"
	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
)

// Fetcher answers engine geometry queries directly from the local store,
// bypassing HTTP. Tile metadata is the one outbound call and goes through
// the SSRF-guarded client because tile URLs are caller-supplied.
type Fetcher struct {
	store *Store
	tiles *httpclient.SaferClient
	log   *zap.SugaredLogger
}

// NewFetcher wraps a store as the engine's geometry source.
func NewFetcher(store *Store, log *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		store: store,
		tiles: httpclient.NewSaferClient(30 * time.Second),
		log:   log,
	}
}

// SetTileClient substitutes the tile metadata client, for tests against
// httptest servers.
func (f *Fetcher) SetTileClient(c *httpclient.SaferClient) {
	f.tiles = c
}

func (f *Fetcher) ResolveClick(ctx context.Context, c selection.Coordinate) (string, error) {
	return f.store.PointToWbid(ctx, c)
}

func (f *Fetcher) SelectedGeometry(ctx context.Context, sel map[string]selection.Coordinate) (*geojson.FeatureCollection, error) {
	ids := make([]string, 0, len(sel))
	for id := range sel {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return f.store.GeometriesFor(ctx, ids)
}

// UpstreamGeometry assembles the four upstream layers for one basin: the
// upstream divide polygons, the nexus markers along the upstream network,
// and the two connector line sets (divide→nexus and nexus→divide).
func (f *Fetcher) UpstreamGeometry(ctx context.Context, id string) (map[string]*geojson.FeatureCollection, error) {
	ids, err := f.store.UpstreamIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	// The clicked basin itself is drawn by the selected layer.
	upstream := make([]string, 0, len(ids))
	for _, u := range ids {
		if u != id {
			upstream = append(upstream, u)
		}
	}

	merged, err := f.store.GeometriesFor(ctx, upstream)
	if err != nil {
		return nil, err
	}

	circles := geojson.NewFeatureCollection()
	tolines := geojson.NewFeatureCollection()
	fromNexus := geojson.NewFeatureCollection()
	seenNexus := make(map[string]bool)

	for _, u := range ids {
		nexusID, downstream, err := f.store.DownstreamNexus(ctx, u)
		if err != nil {
			return nil, err
		}
		if nexusID == "" {
			continue
		}
		np, ok, err := f.store.nexusPoint(ctx, nexusID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if !seenNexus[nexusID] {
			seenNexus[nexusID] = true
			nf := geojson.NewFeature(np)
			nf.Properties["id"] = nexusID
			circles.Append(nf)
		}

		if up, ok, err := f.store.dividePoint(ctx, u); err != nil {
			return nil, err
		} else if ok {
			lf := geojson.NewFeature(orb.LineString{up, np})
			lf.Properties["from"] = u
			lf.Properties["to"] = nexusID
			tolines.Append(lf)
		}

		// Stop connector lines at the clicked basin's own nexus.
		if u == id || downstream == "" {
			continue
		}
		if dp, ok, err := f.store.dividePoint(ctx, downstream); err != nil {
			return nil, err
		} else if ok {
			lf := geojson.NewFeature(orb.LineString{np, dp})
			lf.Properties["from"] = nexusID
			lf.Properties["to"] = downstream
			fromNexus.Append(lf)
		}
	}

	return map[string]*geojson.FeatureCollection{
		layers.LayerMergedGeometry:  merged,
		layers.LayerNexusCircles:    circles,
		layers.LayerMergedTolines:   tolines,
		layers.LayerMergedFromNexus: fromNexus,
	}, nil
}

// Flowlines assembles the downstream flowline set for one basin. Members
// are nil where the network ends.
func (f *Fetcher) Flowlines(ctx context.Context, id string) (*engine.FlowlineSet, error) {
	nexusID, downstream, err := f.store.DownstreamNexus(ctx, id)
	if err != nil {
		return nil, err
	}
	if nexusID == "" {
		return &engine.FlowlineSet{}, nil
	}
	np, ok, err := f.store.nexusPoint(ctx, nexusID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &engine.FlowlineSet{}, nil
	}

	set := &engine.FlowlineSet{}

	nf := geojson.NewFeature(np)
	nf.Properties["id"] = nexusID
	set.Nexus = geojson.NewFeatureCollection()
	set.Nexus.Append(nf)

	if wp, ok, err := f.store.dividePoint(ctx, id); err != nil {
		return nil, err
	} else if ok {
		lf := geojson.NewFeature(orb.LineString{wp, np})
		lf.Properties["from"] = id
		lf.Properties["to"] = nexusID
		set.ToNexus = geojson.NewFeatureCollection()
		set.ToNexus.Append(lf)
	}

	if downstream != "" {
		if dp, ok, err := f.store.dividePoint(ctx, downstream); err != nil {
			return nil, err
		} else if ok {
			lf := geojson.NewFeature(orb.LineString{np, dp})
			lf.Properties["from"] = nexusID
			lf.Properties["to"] = downstream
			set.ToWB = geojson.NewFeatureCollection()
			set.ToWB.Append(lf)
		}
	}

	return set, nil
}

func (f *Fetcher) VPUBoundaries(ctx context.Context) (*geojson.FeatureCollection, error) {
	return f.store.VPUBoundaries(ctx)
}

func (f *Fetcher) WbidsForVPU(ctx context.Context, geom *geojson.Geometry) (map[string]selection.Coordinate, error) {
	if geom == nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "vpu geometry required")
	}
	return f.store.WbidsInGeometry(ctx, geom.Geometry())
}

// TileBounds fetches tilejson metadata for a basemap source and returns its
// coverage as [xmin, ymin, xmax, ymax].
func (f *Fetcher) TileBounds(ctx context.Context, tileURL string) ([4]float64, error) {
	var bounds [4]float64

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return bounds, errors.Wrap(err, "building tile metadata request")
	}
	resp, err := f.tiles.Do(req)
	if err != nil {
		return bounds, errors.Wrap(err, "fetching tile metadata")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return bounds, errors.Wrapf(errors.ErrUnavailable, "tile metadata returned %d", resp.StatusCode)
	}
	var meta struct {
		Bounds []float64 `json:"bounds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return bounds, errors.Wrap(err, "decoding tile metadata")
	}
	if len(meta.Bounds) != 4 {
		return bounds, errors.Newf("tile metadata has %d bounds values, want 4", len(meta.Bounds))
	}
	copy(bounds[:], meta.Bounds)
	return bounds, nil
}

var _ engine.Fetcher = (*Fetcher)(nil)
