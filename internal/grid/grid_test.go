package grid

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCoverageMapCovered(t *testing.T) {
	m := NewCoverageMap(20, 20)
	if got := m.Covered(); got != 0 {
		t.Fatalf("empty map Covered() = %d, want 0", got)
	}
	if !m.Empty() {
		t.Fatal("empty map reported non-empty")
	}
	m.Cells[0][0] = 3
	m.Cells[5][5] = 1
	m.Cells[10][10] = 5
	if got := m.Covered(); got != 3 {
		t.Fatalf("Covered() = %d, want 3", got)
	}
}

func TestApplyUpgradeKeepsMaximum(t *testing.T) {
	var city CityGrid
	m := NewCoverageMap(20, 20)
	m.Cells[Radius][Radius] = 3 // global (20,20)
	m.Cells[0][0] = 5           // global (15,15)

	if err := city.ApplyUpgrade(&m); err != nil {
		t.Fatalf("ApplyUpgrade: %v", err)
	}
	if city.Cells[20][20] != 3 || city.Cells[15][15] != 5 {
		t.Fatalf("unexpected overlay: (20,20)=%d (15,15)=%d", city.Cells[20][20], city.Cells[15][15])
	}

	// A weaker incoming value must not downgrade the stored one.
	m2 := NewCoverageMap(20, 20)
	m2.Cells[Radius][Radius] = 2
	m2.Cells[0][0] = 4
	if err := city.ApplyUpgrade(&m2); err != nil {
		t.Fatalf("ApplyUpgrade: %v", err)
	}
	if city.Cells[20][20] != 3 || city.Cells[15][15] != 5 {
		t.Fatalf("upgrade downgraded cells: (20,20)=%d (15,15)=%d", city.Cells[20][20], city.Cells[15][15])
	}
}

func TestApplyCountIncrements(t *testing.T) {
	var city CityGrid
	m := NewCoverageMap(20, 20)
	m.Cells[Radius][Radius] = 3

	for i := 0; i < 3; i++ {
		if err := city.ApplyCount(&m); err != nil {
			t.Fatalf("ApplyCount: %v", err)
		}
	}
	if city.Cells[20][20] != 3 {
		t.Fatalf("count cell = %d, want 3", city.Cells[20][20])
	}
	if city.Cells[19][20] != 0 {
		t.Fatalf("zero-signal cell incremented")
	}
}

func TestApplyOutOfGrid(t *testing.T) {
	var city CityGrid
	for _, m := range []CoverageMap{
		NewCoverageMap(2, 20),  // writes x<0
		NewCoverageMap(58, 20), // writes x>=CityWidth
		NewCoverageMap(20, 2),  // writes y<0
		NewCoverageMap(20, 39), // writes y>=CityHeight
	} {
		if err := city.ApplyUpgrade(&m); !errors.Is(err, ErrOutOfGrid) {
			t.Errorf("centre (%d,%d): err = %v, want ErrOutOfGrid", m.XCenter, m.YCenter, err)
		}
	}
}

func TestClearAndFill(t *testing.T) {
	var g CityGrid
	g.Fill(7)
	if g.Cells[0][0] != 7 || g.Cells[59][40] != 7 {
		t.Fatal("Fill did not reach grid corners")
	}
	g.Clear()
	var want CityGrid
	if diff := cmp.Diff(want, g); diff != "" {
		t.Fatalf("Clear left residue (-want +got):\n%s", diff)
	}
}
