package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
)

func TestHandleClickToggle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.fetcher.clickID = "wb-1"

	res, err := h.ctrl.HandleClick(ctx, selection.Coordinate{Lat: 40, Lng: -89})
	require.NoError(t, err)
	assert.Equal(t, "wb-1", res.WbID)
	assert.True(t, res.Selected)
	assert.True(t, h.sel.Contains("wb-1"))
	assert.NotNil(t, h.eng.PrimaryHandle())
	assert.Len(t, h.eng.TrackedKeys("upstream"), 1)
	assert.Len(t, h.eng.TrackedKeys("flowlines"), 1)

	// Second click on the same basin deselects and clears everything.
	res, err = h.ctrl.HandleClick(ctx, selection.Coordinate{Lat: 40, Lng: -89})
	require.NoError(t, err)
	assert.False(t, res.Selected)
	assert.False(t, h.sel.Contains("wb-1"))
	assert.Nil(t, h.eng.PrimaryHandle())
	assert.Empty(t, h.eng.TrackedKeys("upstream"))
	assert.Empty(t, h.eng.TrackedKeys("flowlines"))
	assert.Zero(t, h.surface.ShownCount())
}

func TestHandleClickNoBasin(t *testing.T) {
	h := newHarness()
	h.fetcher.clickID = "" // water, ocean, out of coverage

	res, err := h.ctrl.HandleClick(context.Background(), selection.Coordinate{Lat: 0, Lng: 0})
	require.NoError(t, err)
	assert.Empty(t, res.WbID)
	assert.Zero(t, h.sel.Len())
}

func TestHandleClickResolveError(t *testing.T) {
	h := newHarness()
	h.fetcher.clickErr = errors.New("hydrofabric unavailable")

	_, err := h.ctrl.HandleClick(context.Background(), selection.Coordinate{Lat: 40, Lng: -89})
	require.Error(t, err)
	assert.Zero(t, h.sel.Len())
}

func TestHandleVPUClick(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.fetcher.vpuMembers = map[string]selection.Coordinate{
		"wb-10": {Lat: 1}, "wb-11": {Lat: 2},
	}

	active, count, err := h.ctrl.HandleVPUClick(ctx, "05", nil)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 2, count)
	assert.Len(t, h.eng.TrackedKeys("upstream"), 2)

	// Toggle off: all members and their derived overlays go away.
	active, _, err = h.ctrl.HandleVPUClick(ctx, "05", nil)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Zero(t, h.sel.Len())
	assert.Empty(t, h.eng.TrackedKeys("upstream"))
	assert.Zero(t, h.surface.ShownCount())
}

func TestHandleVPUClickFetchError(t *testing.T) {
	h := newHarness()
	h.fetcher.vpuErr = errors.New("vpu query failed")

	_, _, err := h.ctrl.HandleVPUClick(context.Background(), "09", nil)
	require.Error(t, err)
	assert.Zero(t, h.sel.Len())
	assert.False(t, h.sel.GroupActive("09"))
}

func TestLoadBoundaries(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.ctrl.LoadBoundaries(context.Background()))

	ov, ok := h.reg.Overlay(layers.LayerVPUBoundaries)
	require.True(t, ok, "boundary overlay should be registered")
	require.Len(t, ov.Handles(), 1)
	assert.Equal(t, layers.LayerVPUBoundaries, h.surface.LayerOf(ov.Handles()[0]))
	assert.Equal(t, 1, h.surface.ShownCount())
}
