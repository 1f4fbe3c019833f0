package uvcast

import (
	"fmt"
	"log"

	"github.com/banshee-data/vanet.sim/internal/entities"
)

// DeliverySink counts first-time packet deliveries per simulation tick.
type DeliverySink interface {
	AddDelivery(now float64)
}

// Network runs the dissemination protocol over the entity store.
type Network struct {
	store *entities.Store
	sink  DeliverySink
	debug bool
}

// NewNetwork wires the protocol to an entity store and a delivery counter.
func NewNetwork(store *entities.Store, sink DeliverySink, debug bool) *Network {
	return &Network{store: store, sink: sink, debug: debug}
}

// workItem is one pending flood visit: the vehicle that just received the
// packet and the coordinates/id of the node that delivered it. The angle
// test is parent-relative, so the parent travels with the entry.
type workItem struct {
	self     *entities.Vehicle
	parentID int
	parentX  float64
	parentY  float64
}

// InitialBroadcast floods the origin's packet through its connected
// cluster. The recursion of the reference protocol is expressed as a
// depth-first worklist: the packet-id check doubles as the visited bit, so
// every vehicle of the cluster is processed exactly once. Active RSUs in
// range receive the packet too, without joining the flood.
func (n *Network) InitialBroadcast(now float64, origin *entities.Vehicle) error {
	return n.flood(now, workItem{self: origin, parentID: origin.ID, parentX: origin.XGeo, parentY: origin.YGeo})
}

// flood drains the worklist seeded with one delivery. The seed's parent is
// whichever node handed it the packet: the origin itself at the accident,
// or an RSU when seeding from infrastructure.
func (n *Network) flood(now float64, seed workItem) error {
	stack := []workItem{seed}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		self := item.self

		neighbors, err := n.store.VehiclesInRange(&self.Node)
		if err != nil {
			return fmt.Errorf("flood from %d: %w", self.ID, err)
		}

		for _, v := range neighbors {
			if v.Packet.ID == self.Packet.ID {
				continue
			}
			n.deliver(&v.Node, self.Packet, self.ID, now)
			v.SCF = false
			stack = append(stack, workItem{self: v, parentID: self.ID, parentX: self.XGeo, parentY: self.YGeo})
		}

		rsus, err := n.store.RSUsInRange(&self.Node, entities.AllActive)
		if err != nil {
			return fmt.Errorf("flood from %d to rsus: %w", self.ID, err)
		}
		for _, r := range rsus {
			if r.Packet.ID != self.Packet.ID {
				n.deliver(&r.Node, self.Packet, self.ID, now)
			}
		}

		// Gift-wrapping SCF assignment for every vehicle except the origin.
		if self.ID != self.Packet.Src {
			n.assignSCF(self, item, neighbors)
		}
	}
	return nil
}

func (n *Network) assignSCF(self *entities.Vehicle, item workItem, neighbors []*entities.Vehicle) {
	if len(neighbors) < 2 {
		// Isolated edge: the packet arrived over the vehicle's only link.
		self.SCF = true
		if n.debug {
			log.Printf("DEBUG uvcast scf vehicle=%d isolated neighbors=%d", self.ID, len(neighbors))
		}
		return
	}
	coords := make([][2]float64, len(neighbors))
	for i, v := range neighbors {
		coords[i] = [2]float64{v.XGeo, v.YGeo}
	}
	angles := ComputeAngles(item.parentX, item.parentY, self.XGeo, self.YGeo, coords)
	self.SCF = DetermineSCF(angles)
	if n.debug {
		log.Printf("DEBUG uvcast scf vehicle=%d parent=%d angles=%v scf=%v",
			self.ID, item.parentID, angles, self.SCF)
	}
}

// RebroadcastSCF runs the per-tick store-carry-forward duty: every SCF
// vehicle pushes its packet to any neighbour, vehicle or active RSU, whose
// packet id differs. Not recursive and no SCF reassignment.
func (n *Network) RebroadcastSCF(now float64) error {
	var carriers []*entities.Vehicle
	n.store.EachVehicle(func(v *entities.Vehicle) {
		if v.Active && v.SCF && !v.Packet.None() {
			carriers = append(carriers, v)
		}
	})

	for _, v := range carriers {
		neighbors, err := n.store.VehiclesInRange(&v.Node)
		if err != nil {
			return fmt.Errorf("scf rebroadcast from %d: %w", v.ID, err)
		}
		for _, dst := range neighbors {
			if dst.Packet.ID != v.Packet.ID {
				n.deliver(&dst.Node, v.Packet, v.ID, now)
				dst.SCF = false
			}
		}
		rsus, err := n.store.RSUsInRange(&v.Node, entities.AllActive)
		if err != nil {
			return fmt.Errorf("scf rebroadcast from %d to rsus: %w", v.ID, err)
		}
		for _, r := range rsus {
			if r.Packet.ID != v.Packet.ID {
				n.deliver(&r.Node, v.Packet, v.ID, now)
			}
		}
	}
	return nil
}

// SeedFromRSUs lets every active packet-holding RSU flood its packet into
// vehicle neighbours that lack it, and hands the packet to every other
// active RSU without one. The RSU fleet is small, so the RSU-to-RSU leg is
// flat gossip rather than range-limited forwarding.
func (n *Network) SeedFromRSUs(now float64) error {
	for _, r := range n.store.RSUs() {
		if !r.Active || r.Packet.None() {
			continue
		}

		neighbors, err := n.store.VehiclesInRange(&r.Node)
		if err != nil {
			return fmt.Errorf("rsu %d seed: %w", r.ID, err)
		}
		for _, v := range neighbors {
			if v.Packet.ID == r.Packet.ID {
				continue
			}
			n.deliver(&v.Node, r.Packet, r.ID, now)
			v.SCF = false
			if err := n.flood(now, workItem{self: v, parentID: r.ID, parentX: r.XGeo, parentY: r.YGeo}); err != nil {
				return err
			}
		}

		for _, other := range n.store.RSUs() {
			if other != r && other.Active && other.Packet.ID != r.Packet.ID {
				n.deliver(&other.Node, r.Packet, r.ID, now)
			}
		}
	}
	return nil
}

// InjectAccident places the emergency packet at the vehicle closest to the
// given point, widening the search radius from 8 metres by doubling until
// a candidate appears, then floods it. Returns the source vehicle, or nil
// when the store holds no active vehicles at all.
func (n *Network) InjectAccident(now float64, xgeo, ygeo float64) (*entities.Vehicle, error) {
	if len(n.store.ActiveVehicles()) == 0 {
		return nil, nil
	}

	var candidates []*entities.Vehicle
	for radius := 8; len(candidates) == 0; radius *= 2 {
		var err error
		candidates, err = n.store.VehiclesNearPoint(xgeo, ygeo, radius)
		if err != nil {
			return nil, fmt.Errorf("accident search radius=%dm: %w", radius, err)
		}
	}

	src := candidates[0]
	best := -1
	for _, v := range candidates {
		d, err := n.store.Index().DistanceTo(xgeo, ygeo, v.GID)
		if err != nil {
			return nil, fmt.Errorf("accident candidate %d: %w", v.ID, err)
		}
		if best < 0 || d < best {
			best, src = d, v
		}
	}

	src.Packet = entities.Packet{Src: src.ID, ID: entities.EmergencyID, TxTime: now}
	src.SCF = false
	if n.debug {
		log.Printf("DEBUG accident source vehicle=%d at (%f,%f)", src.ID, src.XGeo, src.YGeo)
	}
	if err := n.InitialBroadcast(now, src); err != nil {
		return nil, err
	}
	return src, nil
}

// deliver copies a packet into dst, restamping source and transmit time,
// and counts the delivery.
func (n *Network) deliver(dst *entities.Node, pkt entities.Packet, fromID int, now float64) {
	dst.Packet = entities.Packet{Src: fromID, ID: pkt.ID, TxTime: now}
	if n.sink != nil {
		n.sink.AddDelivery(now)
	}
	if n.debug {
		log.Printf("DEBUG deliver packet=%d from=%d to=%d t=%.2f", pkt.ID, fromID, dst.ID, now)
	}
}
