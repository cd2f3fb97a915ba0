// Package hydrofabric reads the catchment reference database: divide
// polygons, the divide→nexus flow network, and VPU boundaries. All queries
// are read-only; the database ships as a prebuilt artifact.
//
// The flow network alternates node kinds: each divide drains to a nexus
// (divides.toid) and each nexus drains to a downstream divide (nexus.toid).
// Upstream traversal walks those edges in reverse.
package hydrofabric

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/selection"
)

// Store answers hydrofabric queries against the sqlite reference database.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger

	graphOnce sync.Once
	graphErr  error
	upEdges   map[string][]string // node -> nodes draining into it
	downEdge  map[string]string   // node -> node it drains to
}

// NewStore wraps an open reference database connection. The caller owns
// the connection's lifecycle.
func NewStore(conn *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: conn, log: log}
}

// VPUList returns the distinct VPU codes present in the database, sorted.
func (s *Store) VPUList(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT vpu FROM divides WHERE vpu != '' ORDER BY vpu")
	if err != nil {
		return nil, errors.Wrap(err, "listing vpus")
	}
	defer rows.Close()

	var vpus []string
	for rows.Next() {
		var vpu string
		if err := rows.Scan(&vpu); err != nil {
			return nil, errors.Wrap(err, "scanning vpu")
		}
		vpus = append(vpus, vpu)
	}
	return vpus, rows.Err()
}

// VPUStats returns the divide count per VPU.
func (s *Store) VPUStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT vpu, COUNT(*) FROM divides WHERE vpu != '' GROUP BY vpu")
	if err != nil {
		return nil, errors.Wrap(err, "counting divides per vpu")
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var vpu string
		var n int
		if err := rows.Scan(&vpu, &n); err != nil {
			return nil, errors.Wrap(err, "scanning vpu count")
		}
		stats[vpu] = n
	}
	return stats, rows.Err()
}

// WbidsForVPU returns the waterbody divides of one VPU with their
// representative points. Non-waterbody network nodes are excluded.
func (s *Store) WbidsForVPU(ctx context.Context, vpu string) (map[string]selection.Coordinate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT divide_id, lat, lng FROM divides WHERE vpu = ? AND divide_id LIKE '%wb%'", vpu)
	if err != nil {
		return nil, errors.Wrapf(err, "querying wbids for vpu %s", vpu)
	}
	defer rows.Close()

	out := make(map[string]selection.Coordinate)
	for rows.Next() {
		var id string
		var lat, lng float64
		if err := rows.Scan(&id, &lat, &lng); err != nil {
			return nil, errors.Wrap(err, "scanning divide")
		}
		out[id] = selection.Coordinate{Lat: lat, Lng: lng}
	}
	return out, rows.Err()
}

// loadGraph builds the in-memory flow network once. The hydrofabric has a
// few million edges at CONUS scale; a map walk beats per-hop SQL by orders
// of magnitude, matching how the reference traversal caches its graph.
func (s *Store) loadGraph(ctx context.Context) error {
	s.graphOnce.Do(func() {
		s.upEdges = make(map[string][]string)
		s.downEdge = make(map[string]string)

		for _, q := range []string{
			"SELECT divide_id, toid FROM divides WHERE toid != ''",
			"SELECT nexus_id, toid FROM nexus WHERE toid != ''",
		} {
			rows, err := s.db.QueryContext(ctx, q)
			if err != nil {
				s.graphErr = errors.Wrap(err, "loading flow network")
				return
			}
			for rows.Next() {
				var from, to string
				if err := rows.Scan(&from, &to); err != nil {
					rows.Close()
					s.graphErr = errors.Wrap(err, "scanning flow edge")
					return
				}
				s.upEdges[to] = append(s.upEdges[to], from)
				s.downEdge[from] = to
			}
			if err := rows.Close(); err != nil {
				s.graphErr = err
				return
			}
		}

		if s.log != nil {
			s.log.Infow("Flow network loaded", "nodes", len(s.downEdge))
		}
	})
	return s.graphErr
}

// UpstreamIDs returns every waterbody divide draining into id, the id
// itself included, sorted. Nexus nodes are traversed but not reported.
func (s *Store) UpstreamIDs(ctx context.Context, id string) ([]string, error) {
	if err := s.loadGraph(ctx); err != nil {
		return nil, err
	}

	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if strings.Contains(node, "wb") {
			out = append(out, node)
		}
		for _, up := range s.upEdges[node] {
			if !seen[up] {
				seen[up] = true
				queue = append(queue, up)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// DownstreamNexus returns the nexus a divide drains to, and the divide that
// nexus drains to in turn. Either may be empty at network outlets.
func (s *Store) DownstreamNexus(ctx context.Context, id string) (nexus, downstream string, err error) {
	if err := s.loadGraph(ctx); err != nil {
		return "", "", err
	}
	nexus = s.downEdge[id]
	if nexus != "" {
		downstream = s.downEdge[nexus]
	}
	return nexus, downstream, nil
}

// divideRow is one divides record with its decoded geometry.
type divideRow struct {
	ID   string
	VPU  string
	Lat  float64
	Lng  float64
	Geom orb.Geometry
}

func (s *Store) queryDivides(ctx context.Context, where string, args ...interface{}) ([]divideRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT divide_id, vpu, lat, lng, geojson FROM divides "+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying divides")
	}
	defer rows.Close()

	var out []divideRow
	for rows.Next() {
		var r divideRow
		var raw string
		if err := rows.Scan(&r.ID, &r.VPU, &r.Lat, &r.Lng, &raw); err != nil {
			return nil, errors.Wrap(err, "scanning divide")
		}
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "decoding geometry for %s", r.ID)
		}
		r.Geom = g.Geometry()
		out = append(out, r)
	}
	return out, rows.Err()
}

// GeometriesFor returns the divide polygons for ids as a feature collection
// with id and vpu properties.
func (s *Store) GeometriesFor(ctx context.Context, ids []string) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	if len(ids) == 0 {
		return fc, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	divides, err := s.queryDivides(ctx, "WHERE divide_id IN ("+placeholders+") ORDER BY divide_id", args...)
	if err != nil {
		return nil, err
	}
	for _, d := range divides {
		f := geojson.NewFeature(d.Geom)
		f.Properties["id"] = d.ID
		f.Properties["vpu"] = d.VPU
		fc.Append(f)
	}
	return fc, nil
}

// nexusPoint returns a nexus location, ok=false when unknown.
func (s *Store) nexusPoint(ctx context.Context, id string) (orb.Point, bool, error) {
	var lat, lng float64
	err := s.db.QueryRowContext(ctx,
		"SELECT lat, lng FROM nexus WHERE nexus_id = ?", id).Scan(&lat, &lng)
	if err == sql.ErrNoRows {
		return orb.Point{}, false, nil
	}
	if err != nil {
		return orb.Point{}, false, errors.Wrapf(err, "querying nexus %s", id)
	}
	return orb.Point{lng, lat}, true, nil
}

// dividePoint returns a divide's representative point, ok=false when unknown.
func (s *Store) dividePoint(ctx context.Context, id string) (orb.Point, bool, error) {
	var lat, lng float64
	err := s.db.QueryRowContext(ctx,
		"SELECT lat, lng FROM divides WHERE divide_id = ?", id).Scan(&lat, &lng)
	if err == sql.ErrNoRows {
		return orb.Point{}, false, nil
	}
	if err != nil {
		return orb.Point{}, false, errors.Wrapf(err, "querying divide %s", id)
	}
	return orb.Point{lng, lat}, true, nil
}

// PointToWbid resolves a map location to the waterbody divide whose polygon
// contains it. Empty when the point falls outside every divide.
func (s *Store) PointToWbid(ctx context.Context, coord selection.Coordinate) (string, error) {
	pt := orb.Point{coord.Lng, coord.Lat}

	// Bounding-box prefilter in SQL keeps the polygon test off most rows.
	rows, err := s.db.QueryContext(ctx, `
		SELECT divide_id, geojson FROM divides
		WHERE divide_id LIKE '%wb%'
		  AND min_lng <= ? AND max_lng >= ?
		  AND min_lat <= ? AND max_lat >= ?`,
		coord.Lng, coord.Lng, coord.Lat, coord.Lat)
	if err != nil {
		return "", errors.Wrap(err, "querying candidate divides")
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return "", errors.Wrap(err, "scanning candidate divide")
		}
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return "", errors.Wrapf(err, "decoding geometry for %s", id)
		}
		if geometryContains(g.Geometry(), pt) {
			return id, nil
		}
	}
	return "", rows.Err()
}

func geometryContains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	default:
		return false
	}
}

// VPUBoundaries returns the VPU region polygons with a vpu property each.
func (s *Store) VPUBoundaries(ctx context.Context) (*geojson.FeatureCollection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT vpu, geojson FROM vpu_boundaries ORDER BY vpu")
	if err != nil {
		return nil, errors.Wrap(err, "querying vpu boundaries")
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var vpu, raw string
		if err := rows.Scan(&vpu, &raw); err != nil {
			return nil, errors.Wrap(err, "scanning vpu boundary")
		}
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "decoding boundary for vpu %s", vpu)
		}
		f := geojson.NewFeature(g.Geometry())
		f.Properties["vpu"] = vpu
		fc.Append(f)
	}
	return fc, rows.Err()
}

// WbidsInGeometry returns the waterbody divides whose representative point
// falls inside the given polygon.
func (s *Store) WbidsInGeometry(ctx context.Context, g orb.Geometry) (map[string]selection.Coordinate, error) {
	bound := g.Bound()
	rows, err := s.db.QueryContext(ctx, `
		SELECT divide_id, lat, lng FROM divides
		WHERE divide_id LIKE '%wb%'
		  AND lng BETWEEN ? AND ? AND lat BETWEEN ? AND ?`,
		bound.Min[0], bound.Max[0], bound.Min[1], bound.Max[1])
	if err != nil {
		return nil, errors.Wrap(err, "querying divides in bound")
	}
	defer rows.Close()

	out := make(map[string]selection.Coordinate)
	for rows.Next() {
		var id string
		var lat, lng float64
		if err := rows.Scan(&id, &lat, &lng); err != nil {
			return nil, errors.Wrap(err, "scanning divide")
		}
		if geometryContains(g, orb.Point{lng, lat}) {
			out[id] = selection.Coordinate{Lat: lat, Lng: lng}
		}
	}
	return out, rows.Err()
}
