package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/db"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/hydrofabric"
)

// hydroFixture builds the wb-1 → nex-1 → wb-2 → nex-2 → wb-3 chain used
// across the store tests.
func hydroFixture(t *testing.T) *hydrofabric.Store {
	t.Helper()
	conn, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, hydrofabric.EnsureSchema(conn))

	square := func(x float64) string {
		poly := orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}}
		raw, err := json.Marshal(geojson.NewGeometry(poly))
		require.NoError(t, err)
		return string(raw)
	}
	insert := func(id, toid string, x float64) {
		_, err := conn.Exec(`
			INSERT INTO divides (divide_id, vpu, toid, lat, lng, min_lat, max_lat, min_lng, max_lng, geojson)
			VALUES (?, '01', ?, 0.5, ?, 0, 1, ?, ?, ?)`,
			id, toid, x+0.5, x, x+1, square(x))
		require.NoError(t, err)
	}
	insert("wb-1", "nex-1", 0)
	insert("wb-2", "nex-2", 2)
	insert("wb-3", "", 4)
	_, err = conn.Exec("INSERT INTO nexus (nexus_id, toid, lat, lng) VALUES ('nex-1','wb-2',0.5,1.5),('nex-2','wb-3',0.5,3.5)")
	require.NoError(t, err)

	return hydrofabric.NewStore(conn, nil)
}

func TestSubsetWritesArtifacts(t *testing.T) {
	store := hydroFixture(t)
	outRoot := t.TempDir()

	outDir, err := Subset(context.Background(), store, outRoot, []string{"wb-3"}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outRoot, "wb-1_subset"), outDir,
		"directory named after the first upstream id")

	raw, err := os.ReadFile(filepath.Join(outDir, "divides.geojson"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3, "whole upstream network included")

	metaRaw, err := os.ReadFile(filepath.Join(outDir, "metadata.json"))
	require.NoError(t, err)
	var meta struct {
		UpstreamWbIDs []string `json:"upstream_wb_ids"`
		DivideCount   int      `json:"divide_count"`
	}
	require.NoError(t, json.Unmarshal(metaRaw, &meta))
	assert.Equal(t, []string{"wb-1", "wb-2", "wb-3"}, meta.UpstreamWbIDs)
	assert.Equal(t, 3, meta.DivideCount)
}

func TestSubsetRequiresIDs(t *testing.T) {
	store := hydroFixture(t)

	_, err := Subset(context.Background(), store, t.TempDir(), nil, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoSelection))
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "an empty selection is an invalid request")
}

func TestSubsetHandlerSetsResult(t *testing.T) {
	store := hydroFixture(t)
	outRoot := t.TempDir()
	h := NewSubsetHandler(store, outRoot, 0, zap.NewNop().Sugar())

	payload, err := json.Marshal(SubsetRequest{WbIDs: []string{"wb-2"}})
	require.NoError(t, err)
	job := &Job{ID: "test", Handler: HandlerSubset, Payload: payload}

	require.NoError(t, h.Execute(context.Background(), job))
	assert.Equal(t, filepath.Join(outRoot, "wb-1_subset"), job.Result)
}
