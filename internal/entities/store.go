package entities

import (
	"errors"
	"fmt"
	"log"

	"github.com/banshee-data/vanet.sim/internal/fcd"
	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/gis"
)

// ErrObstructed is returned when an RSU would be placed inside a building.
var ErrObstructed = errors.New("entities: rsu placement obstructed")

// RSUFilter selects which RSUs a range query may return.
type RSUFilter int

const (
	// AllActive returns only active RSUs (packet forwarding).
	AllActive RSUFilter = iota
	// All returns active and inactive RSUs (decision gossip).
	All
)

// Store keeps every vehicle and RSU of the run, keyed by id, with gid
// indexes for resolving spatial query results. Vehicles are never removed:
// one that leaves the trace stays inactive and may reappear later. All
// mutation goes through the store-owned structs, so neighbour helpers can
// hand out pointers without aliasing hazards.
type Store struct {
	index gis.SpatialIndex

	vehicles     map[int]*Vehicle
	vehicleOrder []int
	vehByGID     map[int64]*Vehicle

	rsus     []*RSU
	rsuByID  map[int]*RSU
	rsuByGID map[int64]*RSU

	debug bool
}

// NewStore creates an empty entity store over the given spatial index.
func NewStore(index gis.SpatialIndex, debug bool) *Store {
	return &Store{
		index:    index,
		vehicles: make(map[int]*Vehicle),
		vehByGID: make(map[int64]*Vehicle),
		rsuByID:  make(map[int]*RSU),
		rsuByGID: make(map[int64]*RSU),
		debug:    debug,
	}
}

// Index exposes the underlying spatial index.
func (s *Store) Index() gis.SpatialIndex { return s.index }

// Vehicle returns a vehicle by id, or nil.
func (s *Store) Vehicle(id int) *Vehicle { return s.vehicles[id] }

// RSU returns an RSU by id, or nil.
func (s *Store) RSU(id int) *RSU { return s.rsuByID[id] }

// RSUs returns all RSUs in insertion order. Callers must not reorder.
func (s *Store) RSUs() []*RSU { return s.rsus }

// VehicleCount returns the number of known vehicles, active or not.
func (s *Store) VehicleCount() int { return len(s.vehicles) }

// EachVehicle visits every vehicle in insertion order.
func (s *Store) EachVehicle(fn func(*Vehicle)) {
	for _, id := range s.vehicleOrder {
		fn(s.vehicles[id])
	}
}

// ActiveVehicles returns the active vehicles in insertion order.
func (s *Store) ActiveVehicles() []*Vehicle {
	var out []*Vehicle
	for _, id := range s.vehicleOrder {
		if v := s.vehicles[id]; v.Active {
			out = append(out, v)
		}
	}
	return out
}

// ApplyFrame reconciles the store against one FCD timestep: every vehicle
// in the frame ends up active at its reported position, every absent
// vehicle ends up inactive. New vehicles are registered with the spatial
// index; known ones are relocated.
func (s *Store) ApplyFrame(ts *fcd.Timestep) error {
	for _, v := range s.vehicles {
		v.Active = false
	}

	for _, rec := range ts.Vehicles {
		v, ok := s.vehicles[rec.ID]
		if !ok {
			v = &Vehicle{}
			v.ID = rec.ID
			v.TimeAdded = ts.Time
			v.SetPosition(rec.X, rec.Y)
			gid, err := s.index.AddPoint(rec.X, rec.Y, rec.ID, gis.FeatVehicle)
			if err != nil {
				return fmt.Errorf("register vehicle %d: %w", rec.ID, err)
			}
			v.GID = gid
			s.vehicles[rec.ID] = v
			s.vehicleOrder = append(s.vehicleOrder, rec.ID)
			s.vehByGID[gid] = v
		} else {
			if err := s.index.UpdatePoint(v.GID, rec.X, rec.Y); err != nil {
				return fmt.Errorf("relocate vehicle %d: %w", rec.ID, err)
			}
			v.SetPosition(rec.X, rec.Y)
		}
		v.Speed = rec.Speed
		v.Parked = rec.Speed == 0
		v.Active = true
	}
	return nil
}

// AddRSU validates and registers a road-side unit. Placement inside a
// building fails with ErrObstructed before any state is mutated.
func (s *Store) AddRSU(id int, xgeo, ygeo float64, active bool, now float64) (*RSU, error) {
	obstructed, err := s.index.IsPointObstructed(xgeo, ygeo)
	if err != nil {
		return nil, fmt.Errorf("rsu %d obstruction check: %w", id, err)
	}
	if obstructed {
		return nil, fmt.Errorf("%w: rsu %d at (%f,%f)", ErrObstructed, id, xgeo, ygeo)
	}

	r := NewRSU(id, xgeo, ygeo, active, now)
	gid, err := s.index.AddPoint(xgeo, ygeo, id, gis.FeatRSU)
	if err != nil {
		return nil, fmt.Errorf("register rsu %d: %w", id, err)
	}
	r.GID = gid
	s.rsus = append(s.rsus, r)
	s.rsuByID[id] = r
	s.rsuByGID[gid] = r
	return r, nil
}

// VehiclesInRange returns the active vehicles the source node can
// communicate with: inside MaxRange, resolved against the store, excluding
// the source itself, and holding a usable signal (>= 2) given distance and
// line of sight.
func (s *Store) VehiclesInRange(src *Node) ([]*Vehicle, error) {
	gids, err := s.index.PointsInRange(src.XGeo, src.YGeo, geo.MaxRange, gis.FeatVehicle)
	if err != nil {
		return nil, fmt.Errorf("vehicle range query: %w", err)
	}

	var neighbors []*Vehicle
	for _, gid := range gids {
		if gid == src.GID {
			continue
		}
		v, ok := s.vehByGID[gid]
		if !ok || !v.Active {
			continue
		}
		distance, err := s.index.DistanceTo(src.XGeo, src.YGeo, gid)
		if err != nil {
			return nil, fmt.Errorf("distance to vehicle gid=%d: %w", gid, err)
		}
		los, err := s.index.LineOfSight(src.XGeo, src.YGeo, v.XGeo, v.YGeo)
		if err != nil {
			return nil, fmt.Errorf("los to vehicle gid=%d: %w", gid, err)
		}
		if geo.SignalQuality(distance, los) >= geo.MinUsableSignal {
			neighbors = append(neighbors, v)
		}
	}

	if s.debug {
		log.Printf("DEBUG vehiclesInRange %d/%d neighbors of %d: %v",
			len(neighbors), len(gids), src.ID, vehicleIDs(neighbors))
	}
	return neighbors, nil
}

// RSUsInRange returns the RSUs the source node can communicate with at a
// usable signal. The filter controls whether inactive RSUs are included;
// decision gossip needs them, packet forwarding does not.
func (s *Store) RSUsInRange(src *Node, filter RSUFilter) ([]*RSU, error) {
	gids, err := s.index.PointsInRange(src.XGeo, src.YGeo, geo.MaxRange, gis.FeatRSU)
	if err != nil {
		return nil, fmt.Errorf("rsu range query: %w", err)
	}

	var neighbors []*RSU
	for _, gid := range gids {
		if gid == src.GID {
			continue
		}
		r, ok := s.rsuByGID[gid]
		if !ok {
			continue
		}
		if filter == AllActive && !r.Active {
			continue
		}
		distance, err := s.index.DistanceTo(src.XGeo, src.YGeo, gid)
		if err != nil {
			return nil, fmt.Errorf("distance to rsu gid=%d: %w", gid, err)
		}
		los, err := s.index.LineOfSight(src.XGeo, src.YGeo, r.XGeo, r.YGeo)
		if err != nil {
			return nil, fmt.Errorf("los to rsu gid=%d: %w", gid, err)
		}
		if geo.SignalQuality(distance, los) >= geo.MinUsableSignal {
			neighbors = append(neighbors, r)
		}
	}
	return neighbors, nil
}

// VehiclesNearPoint returns the active vehicles within rangeMeters of a
// point, with no signal filtering. Used to pick the accident source.
func (s *Store) VehiclesNearPoint(xgeo, ygeo float64, rangeMeters int) ([]*Vehicle, error) {
	gids, err := s.index.PointsInRange(xgeo, ygeo, rangeMeters, gis.FeatVehicle)
	if err != nil {
		return nil, fmt.Errorf("near-point query: %w", err)
	}
	var out []*Vehicle
	for _, gid := range gids {
		if v, ok := s.vehByGID[gid]; ok && v.Active {
			out = append(out, v)
		}
	}
	return out, nil
}

func vehicleIDs(vs []*Vehicle) []int {
	ids := make([]int, len(vs))
	for i, v := range vs {
		ids[i] = v.ID
	}
	return ids
}
