package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vanet.sim/internal/grid"
)

func TestRecorderHistogram(t *testing.T) {
	r := NewRecorder()
	r.AddDelivery(5)
	r.AddDelivery(5)
	r.AddDelivery(7)
	r.AddDelivery(6)

	times, counts := r.PropagationHistogram()
	require.Equal(t, []float64{5, 6, 7}, times)
	require.Equal(t, []int{2, 1, 1}, counts)
	require.Equal(t, 4, r.TotalDeliveries())
}

func TestPropagationSummary(t *testing.T) {
	r := NewRecorder()
	_, _, _, ok := r.PropagationSummary()
	require.False(t, ok, "empty recorder has no summary")

	for i := 0; i < 3; i++ {
		r.AddDelivery(10)
	}
	r.AddDelivery(20)
	mean, p50, _, ok := r.PropagationSummary()
	require.True(t, ok)
	require.InDelta(t, 12.5, mean, 1e-9)
	require.InDelta(t, 10, p50, 1e-9)
}

func TestCoverageStatistics(t *testing.T) {
	var city grid.CityGrid
	city.Cells[0][0] = 5
	city.Cells[1][0] = 5
	city.Cells[2][0] = 3
	city.Cells[3][0] = grid.RSUMarker // ignored

	levels := CoverageStatistics(&city)
	require.Equal(t, 2, levels[5])
	require.Equal(t, 1, levels[3])
	require.Equal(t, 0, levels[4])

	covered := 0
	for l := 1; l <= 5; l++ {
		covered += levels[l]
	}
	require.Equal(t, 3, covered)
	require.Equal(t, 3, CoveredCells(&city))
}

func TestOvercoverage(t *testing.T) {
	var counts grid.CityGrid
	counts.Cells[0][0] = 3 // 2 over cap 1
	counts.Cells[1][0] = 1 // at cap
	counts.Cells[2][0] = 4 // 3 over

	require.Equal(t, 5, Overcoverage(&counts, 1))
	require.Equal(t, 3, Overcoverage(&counts, 2))
	require.Equal(t, 0, Overcoverage(&counts, 4))
}

func makeMap(xc, yc int, cells ...[2]int) *grid.CoverageMap {
	m := grid.NewCoverageMap(xc, yc)
	for _, c := range cells {
		m.Cells[c[0]][c[1]] = 5
	}
	return &m
}

func TestEvaluateCombination(t *testing.T) {
	maps := []*grid.CoverageMap{
		makeMap(20, 20, [2]int{5, 5}, [2]int{6, 5}),
		makeMap(20, 20, [2]int{5, 5}),
	}

	both, err := EvaluateCombination(maps, 0b11)
	require.NoError(t, err)
	require.Equal(t, 2, both.Covered)
	require.Equal(t, 1, both.Overcoverage, "shared cell is double-covered")

	only0, err := EvaluateCombination(maps, 0b01)
	require.NoError(t, err)
	require.Equal(t, 2, only0.Covered)
	require.Equal(t, 0, only0.Overcoverage)
}

func TestEnumerateCombinationsKeepsImprovements(t *testing.T) {
	maps := []*grid.CoverageMap{
		makeMap(20, 20, [2]int{5, 5}),
		makeMap(20, 20, [2]int{5, 5}, [2]int{6, 5}),
	}
	kept, err := EnumerateCombinations(maps)
	require.NoError(t, err)
	require.NotEmpty(t, kept)

	// The first subset always improves on the empty high-water mark.
	require.Equal(t, uint32(1), kept[0].Mask)

	// Every kept combination strictly improved coverage or overcoverage.
	bestCovered, bestOver := -1, -1
	for _, c := range kept {
		improved := c.Covered > bestCovered || bestOver < 0 || c.Overcoverage < bestOver
		require.True(t, improved, "mask %#x kept without improvement", c.Mask)
		if c.Covered > bestCovered {
			bestCovered = c.Covered
		}
		if bestOver < 0 || c.Overcoverage < bestOver {
			bestOver = c.Overcoverage
		}
	}
	require.Equal(t, 2, bestCovered)
}

func TestEnumerateCombinationsTooMany(t *testing.T) {
	maps := make([]*grid.CoverageMap, MaxCombinationRSUs+1)
	for i := range maps {
		maps[i] = makeMap(20, 20)
	}
	_, err := EnumerateCombinations(maps)
	require.Error(t, err)
}
