// Package gistest provides an in-memory SpatialIndex for tests: brute-force
// queries over a point slice plus explicit building polygons. Behaviour
// matches the SQLite store, including truncated metre distances and
// insertion-ordered range results.
package gistest

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/gis"
)

type point struct {
	gid  int64
	id   int
	x, y float64
	feat gis.FeatureType
}

// Index is an in-memory SpatialIndex. The zero value is ready to use.
type Index struct {
	points    []point
	buildings []gis.Polygon
	nextGID   int64
}

var _ gis.SpatialIndex = (*Index)(nil)

// AddBuilding registers a building footprint for LOS/obstruction queries.
func (ix *Index) AddBuilding(p gis.Polygon) { ix.buildings = append(ix.buildings, p) }

// AddBuildingRect registers an axis-aligned rectangular footprint.
func (ix *Index) AddBuildingRect(minX, minY, maxX, maxY float64) {
	ix.AddBuilding(gis.Polygon{
		Ring: [][2]float64{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}},
		MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY,
	})
}

func (ix *Index) AddPoint(xgeo, ygeo float64, id int, feat gis.FeatureType) (int64, error) {
	ix.nextGID++
	ix.points = append(ix.points, point{gid: ix.nextGID, id: id, x: xgeo, y: ygeo, feat: feat})
	return ix.nextGID, nil
}

func (ix *Index) UpdatePoint(gid int64, xgeo, ygeo float64) error {
	for i := range ix.points {
		if ix.points[i].gid == gid {
			ix.points[i].x, ix.points[i].y = xgeo, ygeo
			return nil
		}
	}
	return fmt.Errorf("%w: gid=%d", gis.ErrNotFound, gid)
}

func (ix *Index) DeleteByFeatureType(feat gis.FeatureType) error {
	kept := ix.points[:0]
	for _, p := range ix.points {
		if p.feat != feat {
			kept = append(kept, p)
		}
	}
	ix.points = kept
	return nil
}

func (ix *Index) Coords(gid int64) (float64, float64, error) {
	for _, p := range ix.points {
		if p.gid == gid {
			return p.x, p.y, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: gid=%d", gis.ErrNotFound, gid)
}

func (ix *Index) PointsInRange(xcenter, ycenter float64, rangeMeters int, feat gis.FeatureType) ([]int64, error) {
	r := float64(rangeMeters) * geo.MetersToDegrees
	var gids []int64
	for _, p := range ix.points {
		if p.feat != feat {
			continue
		}
		dx, dy := p.x-xcenter, p.y-ycenter
		if dx*dx+dy*dy <= r*r {
			gids = append(gids, p.gid)
		}
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return gids, nil
}

func (ix *Index) DistanceTo(xgeo, ygeo float64, gid int64) (int, error) {
	x, y, err := ix.Coords(gid)
	if err != nil {
		return 0, err
	}
	dx, dy := x-xgeo, y-ygeo
	return int(math.Sqrt(dx*dx+dy*dy) / geo.MetersToDegrees), nil
}

func (ix *Index) LineOfSight(x1, y1, x2, y2 float64) (bool, error) {
	for _, b := range ix.buildings {
		if b.IntersectsSegment(x1, y1, x2, y2) {
			return false, nil
		}
	}
	return true, nil
}

func (ix *Index) IsPointObstructed(xgeo, ygeo float64) (bool, error) {
	for _, b := range ix.buildings {
		if b.Contains(xgeo, ygeo) {
			return true, nil
		}
	}
	return false, nil
}
