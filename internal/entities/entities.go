// Package entities holds the simulated road objects (vehicles and road-side
// units) and the id-keyed store that reconciles them against FCD frames and
// answers neighbour queries through the spatial index.
package entities

import (
	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/grid"
)

// EmergencyID is the packet id of the injected emergency message.
const EmergencyID = 31337

// Packet is a disseminated message. ID zero means the slot is empty.
type Packet struct {
	Src    int
	ID     int
	TxTime float64
}

// None reports whether the slot holds no packet.
func (p Packet) None() bool { return p.ID == 0 }

// Node is the location and identity block shared by vehicles and RSUs.
// Position is kept in both geographic and cell coordinates; SetPosition
// keeps them consistent.
type Node struct {
	ID        int
	GID       int64
	Active    bool
	XGeo      float64
	YGeo      float64
	XCell     int
	YCell     int
	Packet    Packet
	TimeAdded float64
}

// SetPosition updates geographic coordinates and re-derives the cell pair.
func (n *Node) SetPosition(xgeo, ygeo float64) {
	n.XGeo, n.YGeo = xgeo, ygeo
	n.XCell, n.YCell = geo.CellFromWGS84(xgeo, ygeo)
}

// Vehicle is a mobile road object fed from the FCD trace.
type Vehicle struct {
	Node
	Speed  float64
	Parked bool
	// SCF marks store-carry-forward duty for the packet currently held.
	SCF bool
}

// RSU is a stationary road-side unit with a coverage map and the gossip
// state driving its activation decisions.
type RSU struct {
	Node

	// Coverage is upgrade-only: a cell's stored signal is only ever
	// replaced by a strictly greater one.
	Coverage grid.CoverageMap
	// NeighborMaps holds the last coverage map received from each RSU
	// neighbour, keyed by sender id.
	NeighborMaps map[int]grid.CoverageMap

	CoveredCellCount       int
	CoveredOnLastBroadcast int

	// One-shot flags, cleared after the gossip step handles them.
	TriggerBroadcast bool
	TriggerDecision  bool

	// Instrumentation.
	LastTimeUpdated float64
	Utility         int
	UtilPos         int
	UtilNeg         int
}

// NewRSU builds an RSU at the given location. RSUs start active until the
// first activation decision fires.
func NewRSU(id int, xgeo, ygeo float64, active bool, now float64) *RSU {
	r := &RSU{}
	r.ID = id
	r.Active = active
	r.TimeAdded = now
	r.SetPosition(xgeo, ygeo)
	r.Coverage = grid.NewCoverageMap(r.XCell, r.YCell)
	r.NeighborMaps = make(map[int]grid.CoverageMap)
	return r
}
