// Package render draws the per-tick ASCII views of the city grid: vehicle
// positions and the active-RSU signal overlay.
package render

import (
	"strings"

	"github.com/banshee-data/vanet.sim/internal/entities"
	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/grid"
)

const (
	emptyCell   = '.'
	vehicleCell = 'o'
	rsuCell     = 'R'
)

// VehicleMap renders active vehicles and RSUs onto the city grid, one text
// row per cell row. Entities outside the city bounds are dropped.
func VehicleMap(s *entities.Store) string {
	var g grid.CharGrid
	g.Fill(emptyCell)

	s.EachVehicle(func(v *entities.Vehicle) {
		if v.Active && inCity(v.XCell, v.YCell) {
			g.Cells[v.XCell][v.YCell] = vehicleCell
		}
	})
	for _, r := range s.RSUs() {
		if inCity(r.XCell, r.YCell) {
			g.Cells[r.XCell][r.YCell] = rsuCell
		}
	}
	return renderChars(&g)
}

// SignalMap renders a signal grid as digits, with RSU markers drawn as 'R'
// and uncovered cells as dots.
func SignalMap(city *grid.CityGrid) string {
	var b strings.Builder
	b.Grow((geo.CityWidth + 1) * geo.CityHeight)
	for y := 0; y < geo.CityHeight; y++ {
		for x := 0; x < geo.CityWidth; x++ {
			switch v := city.Cells[x][y]; {
			case v == grid.RSUMarker:
				b.WriteByte(rsuCell)
			case v <= 0:
				b.WriteByte(emptyCell)
			default:
				b.WriteByte(byte('0' + v))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MarkRSUs stamps the RSU marker onto a signal grid for rendering.
func MarkRSUs(city *grid.CityGrid, s *entities.Store) {
	for _, r := range s.RSUs() {
		if inCity(r.XCell, r.YCell) {
			city.Cells[r.XCell][r.YCell] = grid.RSUMarker
		}
	}
}

func inCity(x, y int) bool {
	return x >= 0 && x < geo.CityWidth && y >= 0 && y < geo.CityHeight
}

func renderChars(g *grid.CharGrid) string {
	var b strings.Builder
	b.Grow((geo.CityWidth + 1) * geo.CityHeight)
	for y := 0; y < geo.CityHeight; y++ {
		for x := 0; x < geo.CityWidth; x++ {
			b.WriteByte(g.Cells[x][y])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
