package geo

import (
	"math"
	"testing"
)

func TestCellFromWGS84(t *testing.T) {
	testCases := []struct {
		name  string
		xgeo  float64
		ygeo  float64
		xcell int
		ycell int
	}{
		{"reference_corner", XReference, YReference, 0, 0},
		{"map_centre", XCenter, YCenter, 25, 25},
		{"one_arcsecond_east", XReference + 1.0/3600, YReference, 1, 0},
		{"one_arcsecond_south", XReference, YReference - 1.0/3600, 0, 1},
		{"sub_cell_offset", XReference + 0.5/3600, YReference - 0.5/3600, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			xc, yc := CellFromWGS84(tc.xgeo, tc.ygeo)
			if xc != tc.xcell || yc != tc.ycell {
				t.Errorf("CellFromWGS84(%f,%f) = (%d,%d), want (%d,%d)",
					tc.xgeo, tc.ygeo, xc, yc, tc.xcell, tc.ycell)
			}
		})
	}
}

func TestCellConsistentWithDegreeOffsets(t *testing.T) {
	// Moving by n metres converted through MetersToDegrees must advance the
	// cell index by floor(n*MetersToDegrees*3600).
	for _, meters := range []int{10, 50, 155, 500} {
		x := XReference + float64(meters)*MetersToDegrees
		xc, _ := CellFromWGS84(x, YReference)
		want := int(math.Floor(float64(meters) * MetersToDegrees * 3600))
		if xc != want {
			t.Errorf("offset %dm: xcell = %d, want %d", meters, xc, want)
		}
	}
}

func TestSignalQualitySteps(t *testing.T) {
	testCases := []struct {
		distance int
		los      bool
		want     uint8
	}{
		// LOS thresholds
		{50, true, 5},
		{60, true, 5},
		{69, true, 5},
		{70, true, 4},
		{100, true, 4},
		{114, true, 4},
		{120, true, 3},
		{134, true, 3},
		{140, true, 2},
		{154, true, 2},
		{155, true, 0},
		{160, true, 0},
		// NLOS thresholds
		{50, false, 5},
		{57, false, 5},
		{58, false, 4},
		{60, false, 4},
		{64, false, 4},
		{100, false, 3},
		{104, false, 3},
		{120, false, 2},
		{129, false, 2},
		{130, false, 0},
		{140, false, 0},
		{160, false, 0},
	}

	for _, tc := range testCases {
		got := SignalQuality(tc.distance, tc.los)
		if got != tc.want {
			t.Errorf("SignalQuality(%d, los=%v) = %d, want %d", tc.distance, tc.los, got, tc.want)
		}
	}
}

func TestSignalLOSNeverWorseThanNLOS(t *testing.T) {
	for d := 0; d < 300; d++ {
		if SignalQuality(d, true) < SignalQuality(d, false) {
			t.Fatalf("distance %d: LOS signal %d below NLOS signal %d",
				d, SignalQuality(d, true), SignalQuality(d, false))
		}
	}
}
