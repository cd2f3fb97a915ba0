package hydrofabric

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/internal/httpclient"
	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
)

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(fixture(t), zap.NewNop().Sugar())
}

func TestFetcherResolveClick(t *testing.T) {
	f := newFetcher(t)

	id, err := f.ResolveClick(context.Background(), selection.Coordinate{Lat: 0.5, Lng: 2.5})
	require.NoError(t, err)
	assert.Equal(t, "wb-2", id)
}

func TestFetcherSelectedGeometry(t *testing.T) {
	f := newFetcher(t)

	fc, err := f.SelectedGeometry(context.Background(), map[string]selection.Coordinate{
		"wb-3": {}, "wb-1": {},
	})
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "wb-1", fc.Features[0].Properties["id"])
	assert.Equal(t, "wb-3", fc.Features[1].Properties["id"])
}

func TestFetcherUpstreamGeometry(t *testing.T) {
	f := newFetcher(t)

	fcs, err := f.UpstreamGeometry(context.Background(), "wb-3")
	require.NoError(t, err)

	// wb-3 itself is excluded from the merged polygons.
	merged := fcs[layers.LayerMergedGeometry]
	require.NotNil(t, merged)
	require.Len(t, merged.Features, 2)
	assert.Equal(t, "wb-1", merged.Features[0].Properties["id"])
	assert.Equal(t, "wb-2", merged.Features[1].Properties["id"])

	// Both nexuses along the upstream network appear once.
	circles := fcs[layers.LayerNexusCircles]
	require.NotNil(t, circles)
	assert.Len(t, circles.Features, 2)

	// Each upstream divide gets a connector to its nexus; wb-3 has none.
	tolines := fcs[layers.LayerMergedTolines]
	require.NotNil(t, tolines)
	assert.Len(t, tolines.Features, 2)

	fromNexus := fcs[layers.LayerMergedFromNexus]
	require.NotNil(t, fromNexus)
	assert.Len(t, fromNexus.Features, 2)
}

func TestFetcherUpstreamGeometryHeadwater(t *testing.T) {
	f := newFetcher(t)

	fcs, err := f.UpstreamGeometry(context.Background(), "wb-1")
	require.NoError(t, err)
	assert.Empty(t, fcs[layers.LayerMergedGeometry].Features)
	assert.Len(t, fcs[layers.LayerNexusCircles].Features, 1, "own nexus still marked")
}

func TestFetcherFlowlines(t *testing.T) {
	f := newFetcher(t)
	ctx := context.Background()

	set, err := f.Flowlines(ctx, "wb-1")
	require.NoError(t, err)
	require.NotNil(t, set.Nexus)
	require.NotNil(t, set.ToNexus)
	require.NotNil(t, set.ToWB)
	assert.Equal(t, "nex-1", set.Nexus.Features[0].Properties["id"])
	assert.Equal(t, "wb-2", set.ToWB.Features[0].Properties["to"])

	line, ok := set.ToNexus.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.Point{0.5, 0.5}, line[0], "starts at wb-1's point")
	assert.Equal(t, orb.Point{1.5, 0.5}, line[1], "ends at nex-1")

	// Outlet has no downstream network at all.
	set, err = f.Flowlines(ctx, "wb-3")
	require.NoError(t, err)
	assert.Nil(t, set.Nexus)
	assert.Nil(t, set.ToNexus)
	assert.Nil(t, set.ToWB)
}

func TestFetcherWbidsForVPU(t *testing.T) {
	f := newFetcher(t)

	region := geojson.NewGeometry(orb.Polygon{{
		{-0.5, -0.5}, {3.5, -0.5}, {3.5, 1.5}, {-0.5, 1.5}, {-0.5, -0.5},
	}})
	members, err := f.WbidsForVPU(context.Background(), region)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = f.WbidsForVPU(context.Background(), nil)
	assert.Error(t, err, "missing geometry is an invalid request")
}

func TestFetcherTileBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tilejson": "2.2.0", "bounds": [-125, 24, -66, 50]}`))
	}))
	defer srv.Close()

	f := newFetcher(t)
	f.SetTileClient(httpclient.WrapClient(srv.Client()))

	bounds, err := f.TileBounds(context.Background(), srv.URL+"/conus.json")
	require.NoError(t, err)
	assert.Equal(t, [4]float64{-125, 24, -66, 50}, bounds)
}
