// Package sim wires the simulator together and runs the per-tick loop:
// FCD ingest, entity reconciliation, coverage update, gossip and decisions,
// the dissemination step, and statistics.
package sim

import (
	"errors"
	"fmt"

	"github.com/banshee-data/vanet.sim/internal/decision"
)

// ErrConfig reports an invalid run configuration.
var ErrConfig = errors.New("sim: bad configuration")

// RunConfig is the immutable configuration of one simulation run, built
// from the command line and threaded through every component.
type RunConfig struct {
	FCDData      string
	RSUData      string
	BuildingData string
	SpatialDB    string

	EnableNetwork bool
	EnableRSU     bool
	MapSpread     bool
	DecisionMode  decision.Mode

	AccidentTime float64
	StopTime     float64
	RSULoadTime  float64
	PauseMS      int

	PrintVehicleMap    bool
	PrintSignalMap     bool
	PrintStatistics    bool
	PrintEndStatistics bool
	PrintMapTime       bool
	// PrintCombination selects one RSU subset bitmask to evaluate at end
	// of run; negative means disabled.
	PrintCombination int64
	Bruteforce       bool

	ReportDir string
	Listen    string

	Debug             int
	DebugLocations    bool
	DebugCellMaps     bool
	DebugMapBroadcast bool
	// DebugRSUMap dumps one RSU's coverage map per tick; zero disables.
	DebugRSUMap int
}

// Validate rejects configurations the loop cannot run.
func (c *RunConfig) Validate() error {
	if c.FCDData == "" {
		return fmt.Errorf("%w: fcd-data is required", ErrConfig)
	}
	if c.DecisionMode != decision.ModeUtility && c.DecisionMode != decision.ModeExclusiveRatio {
		return fmt.Errorf("%w: decision-mode must be 1 or 2, got %d", ErrConfig, c.DecisionMode)
	}
	if c.EnableRSU && c.RSUData == "" {
		return fmt.Errorf("%w: enable-rsu requires rsu-data", ErrConfig)
	}
	if c.PauseMS < 0 {
		return fmt.Errorf("%w: pause must be non-negative", ErrConfig)
	}
	return nil
}
