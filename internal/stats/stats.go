// Package stats collects run metrics: coverage level counts, overcoverage,
// the packet propagation histogram, and the offline RSU-subset enumerator.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/grid"
)

// Recorder accumulates metrics during a run. It is not safe for concurrent
// use; the simulation loop is single-threaded.
type Recorder struct {
	// propagation maps simulation time to the number of first-time packet
	// deliveries in that tick.
	propagation map[float64]int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{propagation: make(map[float64]int)}
}

// AddDelivery counts one first-time packet delivery at the given tick.
func (r *Recorder) AddDelivery(now float64) { r.propagation[now]++ }

// TotalDeliveries returns the histogram sum: the number of distinct
// (packet, receiver) first deliveries over the run.
func (r *Recorder) TotalDeliveries() int {
	total := 0
	for _, n := range r.propagation {
		total += n
	}
	return total
}

// PropagationHistogram returns the delivery counts keyed by simulation
// time, in time order.
func (r *Recorder) PropagationHistogram() ([]float64, []int) {
	times := make([]float64, 0, len(r.propagation))
	for t := range r.propagation {
		times = append(times, t)
	}
	sort.Float64s(times)
	counts := make([]int, len(times))
	for i, t := range times {
		counts[i] = r.propagation[t]
	}
	return times, counts
}

// PropagationSummary returns the delivery-weighted mean and quantiles of
// the delivery times. ok is false when nothing was delivered.
func (r *Recorder) PropagationSummary() (mean, p50, p95 float64, ok bool) {
	times, counts := r.PropagationHistogram()
	if len(times) == 0 {
		return 0, 0, 0, false
	}
	weights := make([]float64, len(counts))
	for i, c := range counts {
		weights[i] = float64(c)
	}
	mean = stat.Mean(times, weights)
	p50 = stat.Quantile(0.5, stat.Empirical, times, weights)
	p95 = stat.Quantile(0.95, stat.Empirical, times, weights)
	return mean, p50, p95, true
}

// CoverageStatistics counts city cells per signal level 0..5. Cells holding
// render markers below zero are ignored.
func CoverageStatistics(city *grid.CityGrid) map[int]int {
	levels := make(map[int]int, geo.MaxSignal+1)
	for l := 0; l <= geo.MaxSignal; l++ {
		levels[l] = 0
	}
	for x := range city.Cells {
		for y := range city.Cells[x] {
			v := city.Cells[x][y]
			if v >= 0 && v <= geo.MaxSignal {
				levels[v]++
			}
		}
	}
	return levels
}

// CoveredCells counts city cells with any signal.
func CoveredCells(city *grid.CityGrid) int {
	n := 0
	for x := range city.Cells {
		for y := range city.Cells[x] {
			if city.Cells[x][y] > 0 {
				n++
			}
		}
	}
	return n
}

// Overcoverage sums the per-cell redundancy above cap over a count grid.
func Overcoverage(counts *grid.CityGrid, cap int) int {
	total := 0
	for x := range counts.Cells {
		for y := range counts.Cells[x] {
			if c := counts.Cells[x][y]; c > cap {
				total += c - cap
			}
		}
	}
	return total
}
