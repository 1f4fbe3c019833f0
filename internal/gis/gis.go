// Package gis provides the spatial index backing the simulator: a geodesic
// point store with range, distance, line-of-sight and obstruction queries
// over vehicles, road-side units and building footprints.
//
// The canonical implementation is Store, a SQLite table named edificios with
// gid as primary key. Geometric predicates are evaluated in Go over
// bbox-prefiltered rows; inside a single map tile a locally-linear
// degrees-to-metres conversion is accurate enough for all of them.
package gis

import "errors"

// FeatureType partitions the index. The numeric values are fixed by the
// edificios schema and appear verbatim in imported datasets.
type FeatureType uint16

const (
	FeatVehicle  FeatureType = 2222
	FeatRSU      FeatureType = 2223
	FeatBuilding FeatureType = 9790
)

var (
	// ErrBackend wraps storage driver failures.
	ErrBackend = errors.New("gis: backend failure")
	// ErrNotFound is returned for lookups of an unknown gid.
	ErrNotFound = errors.New("gis: gid not found")
)

// SpatialIndex is the query surface the simulation core depends on. Every
// call is independent and synchronous; only AddPoint, UpdatePoint and
// DeleteByFeatureType mutate.
type SpatialIndex interface {
	// AddPoint inserts a point feature and returns its fresh gid.
	AddPoint(xgeo, ygeo float64, id int, feat FeatureType) (int64, error)
	// UpdatePoint relocates the point identified by gid.
	UpdatePoint(gid int64, xgeo, ygeo float64) error
	// DeleteByFeatureType removes every feature of the given type. Used at
	// startup to purge stale entities left over from prior runs.
	DeleteByFeatureType(feat FeatureType) error
	// Coords returns the geographic coordinates of a point by gid.
	Coords(gid int64) (xgeo, ygeo float64, err error)
	// PointsInRange returns the gids of every point of the given feature
	// type within rangeMeters of the centre, Euclidean in degrees. The
	// centre's own gid may be included; callers filter it.
	PointsInRange(xcenter, ycenter float64, rangeMeters int, feat FeatureType) ([]int64, error)
	// DistanceTo returns the distance in whole metres (truncated) from a
	// coordinate pair to the point identified by gid.
	DistanceTo(xgeo, ygeo float64, gid int64) (int, error)
	// LineOfSight reports whether the segment between the two coordinates
	// is free of building geometry.
	LineOfSight(x1, y1, x2, y2 float64) (bool, error)
	// IsPointObstructed reports whether the point intersects any geometry.
	IsPointObstructed(xgeo, ygeo float64) (bool, error)
}
