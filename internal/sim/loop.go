package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/banshee-data/vanet.sim/internal/coverage"
	"github.com/banshee-data/vanet.sim/internal/entities"
	"github.com/banshee-data/vanet.sim/internal/fcd"
	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/grid"
	"github.com/banshee-data/vanet.sim/internal/render"
	"github.com/banshee-data/vanet.sim/internal/stats"
	"github.com/banshee-data/vanet.sim/internal/units"
	"github.com/banshee-data/vanet.sim/internal/uvcast"
)

// ErrBadFrame reports a non-monotonic FCD clock.
var ErrBadFrame = errors.New("sim: non-monotonic fcd frame")

// RSUState is the per-RSU slice of a published tick frame.
type RSUState struct {
	ID      int  `json:"id"`
	Active  bool `json:"active"`
	Covered int  `json:"covered"`
}

// TickFrame is the state snapshot published after each tick.
type TickFrame struct {
	Time           float64    `json:"time"`
	Vehicles       int        `json:"vehicles"`
	ActiveVehicles int        `json:"active_vehicles"`
	MeanSpeedKmh   float64    `json:"mean_speed_kmh"`
	RSUs           []RSUState `json:"rsus"`
	CoveredCells   int        `json:"covered_cells"`
	Deliveries     int        `json:"deliveries"`
}

// Publisher receives tick frames for live observation. Implementations
// must not block the loop.
type Publisher interface {
	PublishTick(TickFrame)
}

// Loop is the per-tick orchestrator.
type Loop struct {
	cfg   RunConfig
	store *entities.Store
	cov   *coverage.Engine
	net   *uvcast.Network
	rec   *stats.Recorder
	pub   Publisher

	clock        float64
	started      bool
	rsusLoaded   bool
	accidentDone bool

	// globalSignal is rebuilt every tick from the currently-active RSUs.
	globalSignal grid.CityGrid
	timeline     []stats.CoverageSample
}

// NewLoop assembles a loop over an entity store. pub may be nil.
func NewLoop(cfg RunConfig, store *entities.Store, rec *stats.Recorder, pub Publisher) *Loop {
	return &Loop{
		cfg:   cfg,
		store: store,
		cov:   coverage.NewEngine(store, cfg.DecisionMode, cfg.DebugMapBroadcast),
		net:   uvcast.NewNetwork(store, rec, cfg.Debug > 1),
		rec:   rec,
		pub:   pub,
	}
}

// Recorder exposes the loop's statistics recorder.
func (l *Loop) Recorder() *stats.Recorder { return l.rec }

// Timeline returns the per-tick covered-cell samples collected so far.
func (l *Loop) Timeline() []stats.CoverageSample { return l.timeline }

// GlobalSignal returns the signal overlay of the last completed tick.
func (l *Loop) GlobalSignal() *grid.CityGrid { return &l.globalSignal }

// Run consumes the FCD trace until EOF, the configured stop time, or
// context cancellation between ticks.
func (l *Loop) Run(ctx context.Context, parser *fcd.Parser) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts, err := parser.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if l.cfg.StopTime > 0 && ts.Time > l.cfg.StopTime {
			return nil
		}
		if err := l.Tick(ts); err != nil {
			return err
		}
		if l.cfg.PauseMS > 0 {
			time.Sleep(time.Duration(l.cfg.PauseMS) * time.Millisecond)
		}
	}
}

// Tick advances the simulation by one FCD frame.
func (l *Loop) Tick(ts *fcd.Timestep) error {
	if l.started && ts.Time <= l.clock {
		return fmt.Errorf("%w: t=%v after t=%v", ErrBadFrame, ts.Time, l.clock)
	}
	l.clock = ts.Time
	l.started = true

	if l.cfg.EnableRSU && !l.rsusLoaded && l.clock >= l.cfg.RSULoadTime {
		if err := l.loadRSUs(); err != nil {
			return err
		}
		l.rsusLoaded = true
	}

	if err := l.store.ApplyFrame(ts); err != nil {
		return err
	}
	if l.cfg.DebugLocations {
		l.store.EachVehicle(func(v *entities.Vehicle) {
			if v.Active {
				log.Printf("DEBUG location vehicle=%d cell=(%d,%d) geo=(%f,%f) parked=%v",
					v.ID, v.XCell, v.YCell, v.XGeo, v.YGeo, v.Parked)
			}
		})
	}

	if l.cfg.EnableRSU {
		if err := l.cov.UpdateAll(l.clock); err != nil {
			return err
		}
		if l.cfg.MapSpread {
			if err := l.cov.GossipStep(l.clock); err != nil {
				return err
			}
		}
	}

	if l.cfg.EnableNetwork {
		if err := l.networkStep(); err != nil {
			return err
		}
	}

	l.rebuildGlobalSignal()
	l.timeline = append(l.timeline, stats.CoverageSample{
		Time:    l.clock,
		Covered: stats.CoveredCells(&l.globalSignal),
	})

	l.emitTickOutput()
	if l.pub != nil {
		l.pub.PublishTick(l.frame())
	}
	return nil
}

func (l *Loop) networkStep() error {
	if err := l.net.RebroadcastSCF(l.clock); err != nil {
		return err
	}
	if err := l.net.SeedFromRSUs(l.clock); err != nil {
		return err
	}
	if !l.accidentDone && l.cfg.AccidentTime > 0 && l.clock >= l.cfg.AccidentTime {
		src, err := l.net.InjectAccident(l.clock, geo.XCenter, geo.YCenter)
		if err != nil {
			return err
		}
		if src != nil {
			log.Printf("accident injected at t=%.2f source vehicle=%d", l.clock, src.ID)
			l.accidentDone = true
		}
	}
	return nil
}

func (l *Loop) loadRSUs() error {
	sites, err := fcd.ReadRSUFile(l.cfg.RSUData)
	if err != nil {
		return err
	}
	placed := 0
	for _, site := range sites {
		_, err := l.store.AddRSU(site.ID, site.XGeo, site.YGeo, true, l.clock)
		if errors.Is(err, entities.ErrObstructed) {
			// Placement inside a building is the one recoverable load
			// error: skip the site and keep going.
			log.Printf("skipping obstructed rsu %d at (%f,%f)", site.ID, site.XGeo, site.YGeo)
			continue
		}
		if err != nil {
			return err
		}
		placed++
	}
	log.Printf("loaded %d/%d rsus at t=%.2f", placed, len(sites), l.clock)
	return nil
}

func (l *Loop) rebuildGlobalSignal() {
	l.globalSignal.Clear()
	for _, r := range l.store.RSUs() {
		if !r.Active {
			continue
		}
		if err := l.globalSignal.ApplyUpgrade(&r.Coverage); err != nil {
			// An overlay escape means an RSU sits outside the interior
			// margin; nothing checks that at load, and it is fatal here.
			log.Fatalf("global signal overlay: %v", err)
		}
	}
}

func (l *Loop) emitTickOutput() {
	if l.cfg.PrintVehicleMap {
		fmt.Printf("t=%.2f vehicles\n%s", l.clock, render.VehicleMap(l.store))
	}
	if l.cfg.PrintSignalMap {
		marked := l.globalSignal
		render.MarkRSUs(&marked, l.store)
		fmt.Printf("t=%.2f signal\n%s", l.clock, render.SignalMap(&marked))
	}
	if l.cfg.PrintStatistics {
		levels := stats.CoverageStatistics(&l.globalSignal)
		fmt.Printf("t=%.2f coverage", l.clock)
		for lvl := 0; lvl <= 5; lvl++ {
			fmt.Printf(" s%d=%d", lvl, levels[lvl])
		}
		fmt.Println()
	}
	if l.cfg.DebugCellMaps {
		for _, r := range l.store.RSUs() {
			l.dumpRSUMap(r)
		}
	} else if l.cfg.DebugRSUMap != 0 {
		if r := l.store.RSU(l.cfg.DebugRSUMap); r != nil {
			l.dumpRSUMap(r)
		}
	}
}

func (l *Loop) dumpRSUMap(r *entities.RSU) {
	log.Printf("DEBUG rsu=%d active=%v covered=%d map centre=(%d,%d)",
		r.ID, r.Active, r.CoveredCellCount, r.Coverage.XCenter, r.Coverage.YCenter)
	for yy := 0; yy < grid.Side; yy++ {
		row := make([]byte, grid.Side)
		for xx := 0; xx < grid.Side; xx++ {
			row[xx] = '0' + r.Coverage.Cells[xx][yy]
		}
		log.Printf("DEBUG rsu=%d | %s", r.ID, row)
	}
}

func (l *Loop) frame() TickFrame {
	f := TickFrame{
		Time:         l.clock,
		Vehicles:     l.store.VehicleCount(),
		CoveredCells: stats.CoveredCells(&l.globalSignal),
		Deliveries:   l.rec.TotalDeliveries(),
	}
	active := l.store.ActiveVehicles()
	f.ActiveVehicles = len(active)
	if len(active) > 0 {
		sum := 0.0
		for _, v := range active {
			sum += v.Speed
		}
		f.MeanSpeedKmh = units.ConvertSpeed(sum/float64(len(active)), units.KMPH)
	}
	for _, r := range l.store.RSUs() {
		f.RSUs = append(f.RSUs, RSUState{ID: r.ID, Active: r.Active, Covered: r.CoveredCellCount})
	}
	return f
}
