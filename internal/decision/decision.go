// Package decision computes RSU activation decisions from an RSU's own
// coverage map and the maps received from its neighbours. Two variants are
// available; both are pure functions of their inputs, so identical gossip
// state always yields the same decision.
package decision

import (
	"fmt"

	"github.com/banshee-data/vanet.sim/internal/entities"
	"github.com/banshee-data/vanet.sim/internal/grid"
)

// Mode selects the decision variant.
type Mode int

const (
	// ModeUtility scores each covered cell by signal improvement against
	// neighbours minus redundancy (variant B).
	ModeUtility Mode = 1
	// ModeExclusiveRatio activates when more than 10% of the covered cells
	// are covered by no neighbour (variant A).
	ModeExclusiveRatio Mode = 2
)

// ExclusiveRatioThreshold is the fraction of exclusively-covered cells
// above which an RSU stays active in ModeExclusiveRatio.
const ExclusiveRatioThreshold = 0.10

// Decide recomputes r.Active from its coverage and neighbour maps.
func Decide(r *entities.RSU, mode Mode) error {
	switch mode {
	case ModeExclusiveRatio:
		return decideExclusiveRatio(r)
	case ModeUtility:
		return decideUtility(r)
	default:
		return fmt.Errorf("decision: unknown mode %d", mode)
	}
}

// decideExclusiveRatio implements variant A: overlay every neighbour map
// (the RSU's own coverage is not included) and count the cells only this
// RSU covers. The RSU stays active while the exclusive share of its
// covered cells exceeds the threshold.
func decideExclusiveRatio(r *entities.RSU) error {
	var neighborhood grid.CityGrid
	for _, m := range r.NeighborMaps {
		if err := neighborhood.ApplyUpgrade(&m); err != nil {
			return fmt.Errorf("rsu %d neighbour overlay: %w", r.ID, err)
		}
	}

	exclusive := 0
	for xx := 0; xx < grid.Side; xx++ {
		for yy := 0; yy < grid.Side; yy++ {
			if r.Coverage.Cells[xx][yy] == 0 {
				continue
			}
			gx := r.Coverage.XCenter - grid.Radius + xx
			gy := r.Coverage.YCenter - grid.Radius + yy
			v, err := neighborhood.At(gx, gy)
			if err != nil {
				return fmt.Errorf("rsu %d exclusive count: %w", r.ID, err)
			}
			if v == 0 {
				exclusive++
			}
		}
	}

	if r.CoveredCellCount == 0 {
		r.Active = false
		return nil
	}
	r.Active = float64(exclusive)/float64(r.CoveredCellCount) > ExclusiveRatioThreshold
	return nil
}

// decideUtility implements variant B: every covered cell contributes the
// signal improvement over the best neighbour when its own signal is
// stronger (the full signal when no neighbour reaches the cell), and its
// full own signal when a neighbour is as strong or stronger, minus the
// neighbour redundancy on cells
// already covered elsewhere. The RSU stays active while the sum is
// positive.
func decideUtility(r *entities.RSU) error {
	var signalMap, redundancyMap grid.CityGrid
	for _, m := range r.NeighborMaps {
		if err := signalMap.ApplyUpgrade(&m); err != nil {
			return fmt.Errorf("rsu %d signal overlay: %w", r.ID, err)
		}
		if err := redundancyMap.ApplyCount(&m); err != nil {
			return fmt.Errorf("rsu %d redundancy overlay: %w", r.ID, err)
		}
	}

	pos, neg := 0, 0
	for xx := 0; xx < grid.Side; xx++ {
		for yy := 0; yy < grid.Side; yy++ {
			own := int(r.Coverage.Cells[xx][yy])
			if own == 0 {
				continue
			}
			gx := r.Coverage.XCenter - grid.Radius + xx
			gy := r.Coverage.YCenter - grid.Radius + yy
			best, err := signalMap.At(gx, gy)
			if err != nil {
				return fmt.Errorf("rsu %d utility: %w", r.ID, err)
			}
			if best < own {
				pos += own - best
			} else {
				pos += own
			}
			count, err := redundancyMap.At(gx, gy)
			if err != nil {
				return fmt.Errorf("rsu %d utility: %w", r.ID, err)
			}
			if count > 0 {
				neg += count
			}
		}
	}

	r.UtilPos, r.UtilNeg = pos, neg
	r.Utility = pos - neg
	r.Active = r.Utility > 0
	return nil
}
