// Package geo holds the map constants, the WGS84-to-cell transform, and the
// discrete signal quality model shared by the coverage and network layers.
//
// All geometry in the simulator works on a single urban tile where a
// locally-linear metres/degrees conversion is accurate enough. Cells are
// integer arc-second buckets measured from a fixed top-left reference corner.
package geo

import "math"

// Map tile reference corner and centre (WGS84 degrees).
const (
	XReference = -8.62444
	YReference = 41.17056
	XCenter    = -8.617485
	YCenter    = 41.163535
)

// City grid dimensions in cells.
const (
	CityWidth  = 60
	CityHeight = 41
)

// Coverage map geometry: an RSU sees an 11x11 cell neighbourhood centred on
// its own cell.
const (
	ParkedCellCoverage = 11
	ParkedCellRange    = 5
)

// MetersToDegrees converts metres to WGS84 degrees inside the map tile.
// 1/(3600*30.89): one arc-second is roughly 30.89m at this latitude.
const MetersToDegrees = 8.9925e-6

// MaxRange is the radio range in metres used for all neighbour queries.
const MaxRange = 155

// CellFromWGS84 maps geographic coordinates to integer arc-second cell
// indices relative to the reference corner.
func CellFromWGS84(xgeo, ygeo float64) (xcell, ycell int) {
	xcell = int(math.Floor(math.Abs(xgeo-XReference) * 3600))
	ycell = int(math.Floor(math.Abs(ygeo-YReference) * 3600))
	return xcell, ycell
}
