// Package uvcast implements the cluster-based store-carry-forward
// dissemination protocol: an initial flood through the connected one-hop
// cluster, gift-wrapping election of cluster-edge vehicles into SCF duty,
// and the per-tick SCF rebroadcast.
package uvcast

import "math"

// ComputeAngles returns, for each neighbour, the parent-relative angular
// delta in degrees, normalised into [-180, 180]. The parent is the node
// the packet arrived from; self is the receiving vehicle.
func ComputeAngles(parentX, parentY, selfX, selfY float64, neighbors [][2]float64) []float64 {
	selfAngle := math.Atan2(selfY-parentY, selfX-parentX) * 180 / math.Pi

	angles := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		neighAngle := math.Atan2(n[1]-parentY, n[0]-parentX) * 180 / math.Pi
		delta := selfAngle - neighAngle
		if delta > 180 {
			delta -= 360
		} else if delta < -180 {
			delta += 360
		}
		angles = append(angles, delta)
	}
	return angles
}

// DetermineSCF applies the gift-wrapping test to the parent-relative
// angles: when the angular span of the cluster (taking the minimum against
// zero and the maximum against zero) opens no more than a half-plane the
// vehicle sits on the cluster edge and takes store-carry-forward duty.
func DetermineSCF(angles []float64) bool {
	min, max := 0.0, 0.0
	for _, a := range angles {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}
	return max-min <= 180
}
