package gis

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/vanet.sim/internal/geo"
)

// Store implements SpatialIndex over a SQLite edificios table. Point
// features (vehicles, RSUs) live in x/y columns; building footprints are
// stored as WKT polygons and cached in memory for the line-of-sight and
// obstruction predicates.
type Store struct {
	*sql.DB

	mu        sync.Mutex
	buildings []Polygon
	bldLoaded bool
}

// compile-time assertion: the SQLite store satisfies the query surface the
// simulation core depends on.
var _ SpatialIndex = (*Store)(nil)

// Open opens (creating if necessary) the spatial database at path and
// brings its schema to the current migration version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrBackend, path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// applyPragmas applies the SQLite settings every connection needs. WAL is
// not required for a single-process simulator but keeps the file usable by
// concurrent inspection tools while a run is in progress.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBackend, p, err)
		}
	}
	return nil
}

// AddPoint inserts a point feature and returns the gid assigned by the
// table's primary key.
func (s *Store) AddPoint(xgeo, ygeo float64, id int, feat FeatureType) (int64, error) {
	res, err := s.Exec(
		`INSERT INTO edificios(id, feattyp, x, y) VALUES (?, ?, ?, ?)`,
		id, int(feat), xgeo, ygeo)
	if err != nil {
		return 0, fmt.Errorf("%w: add point id=%d: %v", ErrBackend, id, err)
	}
	gid, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: add point id=%d: %v", ErrBackend, id, err)
	}
	return gid, nil
}

// UpdatePoint relocates a point by gid.
func (s *Store) UpdatePoint(gid int64, xgeo, ygeo float64) error {
	res, err := s.Exec(`UPDATE edificios SET x=?, y=? WHERE gid=?`, xgeo, ygeo, gid)
	if err != nil {
		return fmt.Errorf("%w: update gid=%d: %v", ErrBackend, gid, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: gid=%d", ErrNotFound, gid)
	}
	return nil
}

// DeleteByFeatureType removes every feature of the given type.
func (s *Store) DeleteByFeatureType(feat FeatureType) error {
	if _, err := s.Exec(`DELETE FROM edificios WHERE feattyp=?`, int(feat)); err != nil {
		return fmt.Errorf("%w: delete feattyp=%d: %v", ErrBackend, feat, err)
	}
	if feat == FeatBuilding {
		s.invalidateBuildings()
	}
	return nil
}

// Coords returns the coordinates of a point feature by gid.
func (s *Store) Coords(gid int64) (float64, float64, error) {
	var x, y float64
	err := s.QueryRow(`SELECT x, y FROM edificios WHERE gid=?`, gid).Scan(&x, &y)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: gid=%d", ErrNotFound, gid)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%w: coords gid=%d: %v", ErrBackend, gid, err)
	}
	return x, y, nil
}

// PointsInRange returns gids of points of the given feature type within
// rangeMeters of the centre. The SQL layer prefilters on the bounding box;
// the exact Euclidean-in-degrees radius test runs here.
func (s *Store) PointsInRange(xcenter, ycenter float64, rangeMeters int, feat FeatureType) ([]int64, error) {
	r := float64(rangeMeters) * geo.MetersToDegrees
	rows, err := s.Query(
		`SELECT gid, x, y FROM edificios
		 WHERE feattyp=? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?
		 ORDER BY gid`,
		int(feat), xcenter-r, xcenter+r, ycenter-r, ycenter+r)
	if err != nil {
		return nil, fmt.Errorf("%w: range query: %v", ErrBackend, err)
	}
	defer rows.Close()

	var gids []int64
	for rows.Next() {
		var gid int64
		var x, y float64
		if err := rows.Scan(&gid, &x, &y); err != nil {
			return nil, fmt.Errorf("%w: range scan: %v", ErrBackend, err)
		}
		dx, dy := x-xcenter, y-ycenter
		if dx*dx+dy*dy <= r*r {
			gids = append(gids, gid)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: range rows: %v", ErrBackend, err)
	}
	return gids, nil
}

// DistanceTo returns the whole-metre distance from the coordinates to the
// point identified by gid, truncated as the signal model expects.
func (s *Store) DistanceTo(xgeo, ygeo float64, gid int64) (int, error) {
	tx, ty, err := s.Coords(gid)
	if err != nil {
		return 0, err
	}
	dx, dy := tx-xgeo, ty-ygeo
	return int(math.Sqrt(dx*dx+dy*dy) / geo.MetersToDegrees), nil
}

// AddBuilding stores a building footprint and invalidates the polygon
// cache. The polygon is validated before insertion.
func (s *Store) AddBuilding(wkt string) (int64, error) {
	if _, err := ParsePolygonWKT(wkt); err != nil {
		return 0, fmt.Errorf("add building: %w", err)
	}
	res, err := s.Exec(
		`INSERT INTO edificios(id, feattyp, geom) VALUES (0, ?, ?)`,
		int(FeatBuilding), wkt)
	if err != nil {
		return 0, fmt.Errorf("%w: add building: %v", ErrBackend, err)
	}
	gid, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: add building: %v", ErrBackend, err)
	}
	s.invalidateBuildings()
	return gid, nil
}

// CountBuildings reports the number of stored building footprints.
func (s *Store) CountBuildings() (int, error) {
	var n int
	err := s.QueryRow(`SELECT COUNT(gid) FROM edificios WHERE feattyp=?`, int(FeatBuilding)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count buildings: %v", ErrBackend, err)
	}
	return n, nil
}

// LineOfSight reports whether the segment between the two coordinates
// crosses no building footprint.
func (s *Store) LineOfSight(x1, y1, x2, y2 float64) (bool, error) {
	polys, err := s.loadBuildings()
	if err != nil {
		return false, err
	}
	for _, p := range polys {
		if p.IntersectsSegment(x1, y1, x2, y2) {
			return false, nil
		}
	}
	return true, nil
}

// IsPointObstructed reports whether the point falls inside any geometry.
func (s *Store) IsPointObstructed(xgeo, ygeo float64) (bool, error) {
	polys, err := s.loadBuildings()
	if err != nil {
		return false, err
	}
	for _, p := range polys {
		if p.Contains(xgeo, ygeo) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) invalidateBuildings() {
	s.mu.Lock()
	s.bldLoaded = false
	s.buildings = nil
	s.mu.Unlock()
}

// loadBuildings reads and parses every building footprint once, then serves
// the cached polygons. Malformed rows fail the load; buildings come from a
// validated import so this indicates a corrupt database.
func (s *Store) loadBuildings() ([]Polygon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bldLoaded {
		return s.buildings, nil
	}

	rows, err := s.Query(`SELECT gid, geom FROM edificios WHERE feattyp=? ORDER BY gid`, int(FeatBuilding))
	if err != nil {
		return nil, fmt.Errorf("%w: load buildings: %v", ErrBackend, err)
	}
	defer rows.Close()

	var polys []Polygon
	for rows.Next() {
		var gid int64
		var wkt sql.NullString
		if err := rows.Scan(&gid, &wkt); err != nil {
			return nil, fmt.Errorf("%w: building scan: %v", ErrBackend, err)
		}
		if !wkt.Valid {
			continue
		}
		p, err := ParsePolygonWKT(wkt.String)
		if err != nil {
			return nil, fmt.Errorf("building gid=%d: %w", gid, err)
		}
		polys = append(polys, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: building rows: %v", ErrBackend, err)
	}

	s.buildings = polys
	s.bldLoaded = true
	return polys, nil
}
