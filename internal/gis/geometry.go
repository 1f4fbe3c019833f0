package gis

import (
	"fmt"
	"strconv"
	"strings"
)

// Polygon is a closed building footprint ring with a precomputed bounding
// box for cheap rejection.
type Polygon struct {
	Ring                   [][2]float64
	MinX, MinY, MaxX, MaxY float64
}

// ParsePolygonWKT parses the outer ring of a WKT POLYGON, e.g.
// "POLYGON((-8.62 41.17,-8.61 41.17,-8.61 41.16,-8.62 41.17))".
// Interior rings are not supported; building footprints in the source
// datasets never carry holes.
func ParsePolygonWKT(wkt string) (Polygon, error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "POLYGON") {
		return Polygon{}, fmt.Errorf("not a POLYGON: %q", wkt)
	}
	open := strings.Index(s, "((")
	end := strings.Index(s, ")")
	if open < 0 || end < open+2 {
		return Polygon{}, fmt.Errorf("malformed POLYGON: %q", wkt)
	}
	body := s[open+2 : end]

	var p Polygon
	for i, pair := range strings.Split(body, ",") {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			return Polygon{}, fmt.Errorf("malformed vertex %d in %q", i, wkt)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("vertex %d x: %w", i, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("vertex %d y: %w", i, err)
		}
		p.Ring = append(p.Ring, [2]float64{x, y})
	}
	if len(p.Ring) < 3 {
		return Polygon{}, fmt.Errorf("POLYGON with %d vertices: %q", len(p.Ring), wkt)
	}
	// Drop an explicit closing vertex; the ring is implicitly closed.
	first, last := p.Ring[0], p.Ring[len(p.Ring)-1]
	if first == last {
		p.Ring = p.Ring[:len(p.Ring)-1]
	}

	p.MinX, p.MinY = p.Ring[0][0], p.Ring[0][1]
	p.MaxX, p.MaxY = p.Ring[0][0], p.Ring[0][1]
	for _, v := range p.Ring[1:] {
		if v[0] < p.MinX {
			p.MinX = v[0]
		}
		if v[0] > p.MaxX {
			p.MaxX = v[0]
		}
		if v[1] < p.MinY {
			p.MinY = v[1]
		}
		if v[1] > p.MaxY {
			p.MaxY = v[1]
		}
	}
	return p, nil
}

// WKT renders the polygon back to its WKT form with a closing vertex.
func (p Polygon) WKT() string {
	var b strings.Builder
	b.WriteString("POLYGON((")
	for _, v := range p.Ring {
		fmt.Fprintf(&b, "%g %g,", v[0], v[1])
	}
	fmt.Fprintf(&b, "%g %g))", p.Ring[0][0], p.Ring[0][1])
	return b.String()
}

// Contains reports whether the point lies inside the polygon (ray casting,
// boundary counts as inside for the obstruction test's purposes).
func (p Polygon) Contains(x, y float64) bool {
	if x < p.MinX || x > p.MaxX || y < p.MinY || y > p.MaxY {
		return false
	}
	n := len(p.Ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p.Ring[i][0], p.Ring[i][1]
		xj, yj := p.Ring[j][0], p.Ring[j][1]
		if orient(xi, yi, xj, yj, x, y) == 0 && onSegment(xi, yi, xj, yj, x, y) {
			return true
		}
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p.Ring[i][0], p.Ring[i][1]
		xj, yj := p.Ring[j][0], p.Ring[j][1]
		if (yi > y) != (yj > y) {
			xcross := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < xcross {
				inside = !inside
			}
		}
	}
	return inside
}

// IntersectsSegment reports whether the segment crosses or touches the
// polygon. A segment fully inside the footprint also intersects.
func (p Polygon) IntersectsSegment(x1, y1, x2, y2 float64) bool {
	// bbox rejection
	if maxf(x1, x2) < p.MinX || minf(x1, x2) > p.MaxX ||
		maxf(y1, y2) < p.MinY || minf(y1, y2) > p.MaxY {
		return false
	}
	n := len(p.Ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		if segmentsIntersect(x1, y1, x2, y2, p.Ring[i][0], p.Ring[i][1], p.Ring[j][0], p.Ring[j][1]) {
			return true
		}
	}
	return p.Contains(x1, y1) || p.Contains(x2, y2)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// orient returns the sign of the cross product (b-a)x(c-a).
func orient(ax, ay, bx, by, cx, cy float64) int {
	v := (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func onSegment(ax, ay, bx, by, px, py float64) bool {
	return minf(ax, bx) <= px && px <= maxf(ax, bx) &&
		minf(ay, by) <= py && py <= maxf(ay, by)
}

func segmentsIntersect(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	o1 := orient(ax, ay, bx, by, cx, cy)
	o2 := orient(ax, ay, bx, by, dx, dy)
	o3 := orient(cx, cy, dx, dy, ax, ay)
	o4 := orient(cx, cy, dx, dy, bx, by)

	if o1 != o2 && o3 != o4 {
		return true
	}
	// collinear touch cases
	if o1 == 0 && onSegment(ax, ay, bx, by, cx, cy) {
		return true
	}
	if o2 == 0 && onSegment(ax, ay, bx, by, dx, dy) {
		return true
	}
	if o3 == 0 && onSegment(cx, cy, dx, dy, ax, ay) {
		return true
	}
	if o4 == 0 && onSegment(cx, cy, dx, dy, bx, by) {
		return true
	}
	return false
}
