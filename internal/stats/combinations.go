package stats

import (
	"fmt"

	"github.com/banshee-data/vanet.sim/internal/grid"
)

// Combination is one evaluated RSU subset.
type Combination struct {
	Mask         uint32
	Covered      int
	Overcoverage int
}

// MaxCombinationRSUs bounds the subset enumeration; beyond 32 RSUs the
// bitmask runs out and the search space is hopeless anyway.
const MaxCombinationRSUs = 32

// OvercoverageCap is the redundancy a cell may carry before it counts as
// overcovered.
const OvercoverageCap = 1

// EvaluateCombination overlays the coverage maps selected by mask and
// returns the covered-cell count and the overcoverage metric.
func EvaluateCombination(maps []*grid.CoverageMap, mask uint32) (Combination, error) {
	var signal, counts grid.CityGrid
	for i, m := range maps {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if err := signal.ApplyUpgrade(m); err != nil {
			return Combination{}, fmt.Errorf("combination %#x: %w", mask, err)
		}
		if err := counts.ApplyCount(m); err != nil {
			return Combination{}, fmt.Errorf("combination %#x: %w", mask, err)
		}
	}
	return Combination{
		Mask:         mask,
		Covered:      CoveredCells(&signal),
		Overcoverage: Overcoverage(&counts, OvercoverageCap),
	}, nil
}

// EnumerateCombinations walks every non-empty RSU subset in mask order and
// keeps a combination only when it strictly improves the running best on
// at least one metric: more coverage than any kept combination so far, or
// less overcoverage. The result approximates the Pareto front without
// storing the full 2^n sweep.
func EnumerateCombinations(maps []*grid.CoverageMap) ([]Combination, error) {
	if len(maps) > MaxCombinationRSUs {
		return nil, fmt.Errorf("combination enumeration limited to %d RSUs, got %d",
			MaxCombinationRSUs, len(maps))
	}

	var kept []Combination
	bestCovered := -1
	bestOver := -1
	total := uint64(1) << uint(len(maps))
	for mask := uint64(1); mask < total; mask++ {
		c, err := EvaluateCombination(maps, uint32(mask))
		if err != nil {
			return nil, err
		}
		improved := false
		if c.Covered > bestCovered {
			bestCovered = c.Covered
			improved = true
		}
		if bestOver < 0 || c.Overcoverage < bestOver {
			bestOver = c.Overcoverage
			improved = true
		}
		if improved {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
