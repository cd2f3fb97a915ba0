package hydrofabric

import (
	"database/sql"

	"github.com/hydrofabric/basinmap/errors"
)

// Schema is the reference database layout. The production database is built
// offline from the hydrofabric geopackage; this schema also backs fixtures.
//
// divides holds one row per network divide with its polygon as GeoJSON and
// a precomputed bounding box for point lookups. nexus holds the junction
// points. toid columns encode the alternating flow network.
const Schema = `
CREATE TABLE IF NOT EXISTS divides (
    divide_id TEXT PRIMARY KEY,
    vpu TEXT NOT NULL DEFAULT '',
    toid TEXT NOT NULL DEFAULT '',
    lat REAL NOT NULL,
    lng REAL NOT NULL,
    min_lat REAL NOT NULL,
    max_lat REAL NOT NULL,
    min_lng REAL NOT NULL,
    max_lng REAL NOT NULL,
    geojson TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_divides_vpu ON divides(vpu);
CREATE INDEX IF NOT EXISTS idx_divides_bbox ON divides(min_lng, max_lng, min_lat, max_lat);

CREATE TABLE IF NOT EXISTS nexus (
    nexus_id TEXT PRIMARY KEY,
    toid TEXT NOT NULL DEFAULT '',
    lat REAL NOT NULL,
    lng REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS vpu_boundaries (
    vpu TEXT PRIMARY KEY,
    geojson TEXT NOT NULL
);
`

// EnsureSchema creates the reference tables if absent.
func EnsureSchema(conn *sql.DB) error {
	if _, err := conn.Exec(Schema); err != nil {
		return errors.Wrap(err, "creating hydrofabric schema")
	}
	return nil
}
