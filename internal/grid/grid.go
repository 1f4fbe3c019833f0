// Package grid provides the fixed-size cell grids used by the coverage and
// decision layers: the 11x11 per-RSU coverage map and the city-wide
// signal/count/char grids, together with their merge operators.
package grid

import (
	"errors"
	"fmt"

	"github.com/banshee-data/vanet.sim/internal/geo"
)

// ErrOutOfGrid is returned when a coverage map overlay would write outside
// the city grid. RSUs must sit inside the interior margin, so hitting this
// is a placement or indexing bug, not a runtime condition to recover from.
var ErrOutOfGrid = errors.New("grid: coverage overlay outside city bounds")

// Side is the edge length of a per-RSU coverage map.
const Side = geo.ParkedCellCoverage

// Radius is the number of cells a coverage map extends from its centre.
const Radius = geo.ParkedCellRange

// CoverageMap is an 11x11 grid of discrete signal levels centred on an RSU
// cell. Local cell (xx,yy) corresponds to global cell
// (XCenter-Radius+xx, YCenter-Radius+yy).
type CoverageMap struct {
	Cells   [Side][Side]uint8
	XCenter int
	YCenter int
}

// NewCoverageMap returns an empty map anchored at the given global cell.
func NewCoverageMap(xcenter, ycenter int) CoverageMap {
	return CoverageMap{XCenter: xcenter, YCenter: ycenter}
}

// Covered counts cells holding a non-zero signal.
func (m *CoverageMap) Covered() int {
	n := 0
	for xx := 0; xx < Side; xx++ {
		for yy := 0; yy < Side; yy++ {
			if m.Cells[xx][yy] > 0 {
				n++
			}
		}
	}
	return n
}

// Empty reports whether no cell holds a signal.
func (m *CoverageMap) Empty() bool { return m.Covered() == 0 }

// CityGrid is a signed-integer grid covering the whole map tile. It backs
// both signal overlays and redundancy counts. RSUMarker is reserved for
// marking RSU positions in render output.
type CityGrid struct {
	Cells [geo.CityWidth][geo.CityHeight]int
}

// RSUMarker flags an RSU cell in a rendered grid.
const RSUMarker = -1

// Clear resets every cell to zero.
func (g *CityGrid) Clear() {
	for x := range g.Cells {
		for y := range g.Cells[x] {
			g.Cells[x][y] = 0
		}
	}
}

// Fill sets every cell to v.
func (g *CityGrid) Fill(v int) {
	for x := range g.Cells {
		for y := range g.Cells[x] {
			g.Cells[x][y] = v
		}
	}
}

// ApplyUpgrade overlays a coverage map onto the city grid keeping the
// maximum of existing and incoming values per overlapping cell.
func (g *CityGrid) ApplyUpgrade(m *CoverageMap) error {
	return m.each(func(gx, gy int, v uint8) {
		if int(v) > g.Cells[gx][gy] {
			g.Cells[gx][gy] = int(v)
		}
	})
}

// ApplyCount increments the city cell by one wherever the incoming map
// holds a non-zero signal, producing a redundancy count.
func (g *CityGrid) ApplyCount(m *CoverageMap) error {
	return m.each(func(gx, gy int, v uint8) {
		if v > 0 {
			g.Cells[gx][gy]++
		}
	})
}

// At returns the value at global city cell (gx, gy), or an error when the
// cell falls outside the city.
func (g *CityGrid) At(gx, gy int) (int, error) {
	if gx < 0 || gx >= geo.CityWidth || gy < 0 || gy >= geo.CityHeight {
		return 0, fmt.Errorf("%w: cell (%d,%d)", ErrOutOfGrid, gx, gy)
	}
	return g.Cells[gx][gy], nil
}

// each walks every local cell of the map, translating to global cell
// coordinates and bounds-checking against the city grid.
func (m *CoverageMap) each(fn func(gx, gy int, v uint8)) error {
	for xx := 0; xx < Side; xx++ {
		for yy := 0; yy < Side; yy++ {
			gx := m.XCenter - Radius + xx
			gy := m.YCenter - Radius + yy
			if gx < 0 || gx >= geo.CityWidth || gy < 0 || gy >= geo.CityHeight {
				return fmt.Errorf("%w: map centred (%d,%d) writes (%d,%d)",
					ErrOutOfGrid, m.XCenter, m.YCenter, gx, gy)
			}
			fn(gx, gy, m.Cells[xx][yy])
		}
	}
	return nil
}

// CharGrid is the visualisation flavour of the city grid.
type CharGrid struct {
	Cells [geo.CityWidth][geo.CityHeight]byte
}

// Fill sets every cell to c.
func (g *CharGrid) Fill(c byte) {
	for x := range g.Cells {
		for y := range g.Cells[x] {
			g.Cells[x][y] = c
		}
	}
}
