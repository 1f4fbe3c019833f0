package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	if IsValid("knots") {
		t.Error("IsValid(\"knots\") = true, want false")
	}
}

func TestConvertSpeed(t *testing.T) {
	testCases := []struct {
		speedMPS float64
		units    string
		want     float64
	}{
		{10, MPS, 10},
		{10, KMPH, 36},
		{10, MPH, 22.3694},
		{0, KMPH, 0},
		{10, "unknown", 10},
	}
	for _, tc := range testCases {
		got := ConvertSpeed(tc.speedMPS, tc.units)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ConvertSpeed(%f, %q) = %f, want %f", tc.speedMPS, tc.units, got, tc.want)
		}
	}
}
