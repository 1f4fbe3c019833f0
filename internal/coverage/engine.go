// Package coverage maintains each RSU's local coverage map from the
// vehicles it can observe, and runs the map gossip that drives the
// distributed activation decisions.
package coverage

import (
	"fmt"
	"log"

	"github.com/banshee-data/vanet.sim/internal/decision"
	"github.com/banshee-data/vanet.sim/internal/entities"
	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/gis"
	"github.com/banshee-data/vanet.sim/internal/grid"
)

// BroadcastDelta bounds the newly covered cells since an RSU's last
// watermark; the coverage broadcast arms once the delta exceeds it.
const BroadcastDelta = 5

// Engine updates RSU coverage maps and runs the gossip/decision cycle.
type Engine struct {
	store *entities.Store
	mode  decision.Mode
	debug bool
}

// NewEngine builds a coverage engine over the entity store.
func NewEngine(store *entities.Store, mode decision.Mode, debug bool) *Engine {
	return &Engine{store: store, mode: mode, debug: debug}
}

// UpdateRSU refreshes one RSU's coverage map from the vehicles currently in
// range. Cells are witness-driven: a vehicle standing in a cell proves the
// cell is reachable at the observed signal. The map is upgrade-only; the
// covered-cell count and update timestamp move only when a cell first
// becomes covered.
func (e *Engine) UpdateRSU(r *entities.RSU, now float64) error {
	index := e.store.Index()
	gids, err := index.PointsInRange(r.XGeo, r.YGeo, geo.MaxRange, gis.FeatVehicle)
	if err != nil {
		return fmt.Errorf("rsu %d coverage query: %w", r.ID, err)
	}

	for _, gid := range gids {
		distance, err := index.DistanceTo(r.XGeo, r.YGeo, gid)
		if err != nil {
			return fmt.Errorf("rsu %d neighbour gid=%d: %w", r.ID, gid, err)
		}
		if distance == 0 {
			// co-located point, typically the query centre itself
			continue
		}
		nx, ny, err := index.Coords(gid)
		if err != nil {
			return fmt.Errorf("rsu %d neighbour gid=%d: %w", r.ID, gid, err)
		}
		los, err := index.LineOfSight(r.XGeo, r.YGeo, nx, ny)
		if err != nil {
			return fmt.Errorf("rsu %d los gid=%d: %w", r.ID, gid, err)
		}
		signal := geo.SignalQuality(distance, los)

		ncellX, ncellY := geo.CellFromWGS84(nx, ny)
		dx := grid.Radius + ncellX - r.XCell
		dy := grid.Radius + ncellY - r.YCell
		if dx < 0 || dx >= grid.Side || dy < 0 || dy >= grid.Side {
			// numerical artefact of the approximate range query
			continue
		}

		if r.Coverage.Cells[dx][dy] == 0 && signal > 0 {
			r.CoveredCellCount++
			r.LastTimeUpdated = now
		}
		if signal > r.Coverage.Cells[dx][dy] {
			r.Coverage.Cells[dx][dy] = signal
		}
	}

	if r.CoveredCellCount-r.CoveredOnLastBroadcast > BroadcastDelta {
		r.TriggerBroadcast = true
		r.CoveredOnLastBroadcast = r.CoveredCellCount
		if e.debug {
			log.Printf("DEBUG coverage rsu=%d broadcast armed covered=%d", r.ID, r.CoveredCellCount)
		}
	}
	return nil
}

// UpdateAll runs UpdateRSU over the fleet in insertion order.
func (e *Engine) UpdateAll(now float64) error {
	for _, r := range e.store.RSUs() {
		if err := e.UpdateRSU(r, now); err != nil {
			return err
		}
	}
	return nil
}

// GossipStep walks the fleet in insertion order and, for every RSU with a
// pending trigger, reruns its activation decision and broadcasts its
// coverage map when the decision flipped or the coverage broadcast is
// armed. A deactivating RSU broadcasts an empty map so neighbours forget
// its coverage. Receivers store the payload and get their own decision
// trigger set; receivers later in the order are handled in this same pass,
// earlier ones on the next tick.
func (e *Engine) GossipStep(now float64) error {
	for _, r := range e.store.RSUs() {
		if !r.TriggerDecision && !r.TriggerBroadcast {
			continue
		}

		wasActive := r.Active
		if err := decision.Decide(r, e.mode); err != nil {
			return err
		}

		broadcast := wasActive != r.Active || (r.TriggerBroadcast && r.Active)
		if broadcast {
			payload := r.Coverage
			if !r.Active {
				payload = grid.NewCoverageMap(r.XCell, r.YCell)
			}
			neighbors, err := e.store.RSUsInRange(&r.Node, entities.All)
			if err != nil {
				return fmt.Errorf("rsu %d map broadcast: %w", r.ID, err)
			}
			for _, nb := range neighbors {
				nb.NeighborMaps[r.ID] = payload
				nb.TriggerDecision = true
			}
			if e.debug {
				log.Printf("DEBUG gossip rsu=%d active=%v->%v receivers=%d t=%.2f",
					r.ID, wasActive, r.Active, len(neighbors), now)
			}
		}

		r.TriggerBroadcast = false
		r.TriggerDecision = false
	}
	return nil
}
