// Command vanet.sim replays a floating-car-data trace through an urban
// vehicular-network simulation: a live spatial index of vehicles and
// road-side units, per-RSU coverage grids, UVCAST emergency dissemination,
// and distributed RSU activation decisions.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/vanet.sim/internal/decision"
	"github.com/banshee-data/vanet.sim/internal/entities"
	"github.com/banshee-data/vanet.sim/internal/fcd"
	"github.com/banshee-data/vanet.sim/internal/gis"
	"github.com/banshee-data/vanet.sim/internal/monitor"
	"github.com/banshee-data/vanet.sim/internal/sim"
	"github.com/banshee-data/vanet.sim/internal/stats"
)

var (
	fcdData      = flag.String("fcd-data", "", "FCD XML trace to replay (required)")
	rsuData      = flag.String("rsu-data", "", "tab-separated RSU coordinate file")
	buildingData = flag.String("building-data", "", "building footprint file (one WKT POLYGON per line)")
	spatialDB    = flag.String("spatial-db", "vanet_gis.db", "path to the SQLite spatial database")

	enableNetwork    = flag.Bool("enable-network", false, "enable UVCAST dissemination and accident injection")
	enableRSU        = flag.Bool("enable-rsu", false, "load and simulate RSUs")
	decisionMode     = flag.Int("decision-mode", 2, "RSU decision variant: 1 utility, 2 exclusive-coverage ratio")
	disableMapSpread = flag.Bool("disable-map-spread", false, "disable coverage gossip and decisions")
	bruteforce       = flag.Bool("bruteforce", false, "enumerate RSU subsets at end of run")

	accidentTime = flag.Float64("accident-time", 0, "simulation time of the emergency injection (0 disables)")
	stopTime     = flag.Float64("stop-time", 0, "halt after this simulation time (0 runs the full trace)")
	rsuLoadTime  = flag.Float64("rsu-load-time", 0, "simulation time at which RSUs are loaded")
	pause        = flag.Int("pause", 0, "wall-clock sleep per tick in milliseconds")

	printVehicleMap    = flag.Bool("print-vehicle-map", false, "render ASCII vehicle positions per tick")
	printSignalMap     = flag.Bool("print-signal-map", false, "render ASCII signal levels per tick")
	printStatistics    = flag.Bool("print-statistics", false, "per-tick coverage statistics")
	printEndStatistics = flag.Bool("print-end-statistics", false, "final coverage and propagation dump")
	printMapTime       = flag.Bool("print-map-time", false, "per-RSU map-completion time at end of run")
	printCombination   = flag.Int64("print-combination", -1, "evaluate one RSU subset bitmask at end of run")

	reportDir = flag.String("report-dir", "", "write report.html and coverage_timeline.png here")
	listen    = flag.String("listen", "", "serve the live monitor on this address (empty disables)")

	debugLevel        = flag.Int("debug", 0, "diagnostic verbosity")
	debugLocations    = flag.Bool("debug-locations", false, "log vehicle cell positions per tick")
	debugCellMaps     = flag.Bool("debug-cell-maps", false, "dump every RSU coverage map per tick")
	debugMapBroadcast = flag.Bool("debug-map-broadcast", false, "log coverage gossip broadcasts")
	debugRSUMap       = flag.Int("debug-rsu-map", 0, "dump one RSU's coverage map per tick by id")
)

func main() {
	flag.Parse()

	cfg := sim.RunConfig{
		FCDData:            *fcdData,
		RSUData:            *rsuData,
		BuildingData:       *buildingData,
		SpatialDB:          *spatialDB,
		EnableNetwork:      *enableNetwork,
		EnableRSU:          *enableRSU,
		MapSpread:          !*disableMapSpread,
		DecisionMode:       decision.Mode(*decisionMode),
		AccidentTime:       *accidentTime,
		StopTime:           *stopTime,
		RSULoadTime:        *rsuLoadTime,
		PauseMS:            *pause,
		PrintVehicleMap:    *printVehicleMap,
		PrintSignalMap:     *printSignalMap,
		PrintStatistics:    *printStatistics,
		PrintEndStatistics: *printEndStatistics,
		PrintMapTime:       *printMapTime,
		PrintCombination:   *printCombination,
		Bruteforce:         *bruteforce,
		ReportDir:          *reportDir,
		Listen:             *listen,
		Debug:              *debugLevel,
		DebugLocations:     *debugLocations,
		DebugCellMaps:      *debugCellMaps,
		DebugMapBroadcast:  *debugMapBroadcast,
		DebugRSUMap:        *debugRSUMap,
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("%v", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg sim.RunConfig) error {
	index, err := gis.Open(cfg.SpatialDB)
	if err != nil {
		return err
	}
	defer index.Close()

	// Purge point features left behind by a previous run; building
	// geometry is kept.
	if err := index.DeleteByFeatureType(gis.FeatVehicle); err != nil {
		return err
	}
	if err := index.DeleteByFeatureType(gis.FeatRSU); err != nil {
		return err
	}

	if cfg.BuildingData != "" {
		if err := loadBuildings(index, cfg.BuildingData); err != nil {
			return err
		}
	}

	parser, err := fcd.Open(cfg.FCDData)
	if err != nil {
		return err
	}
	defer parser.Close()

	store := entities.NewStore(index, cfg.Debug > 0)
	rec := stats.NewRecorder()

	var pub sim.Publisher
	if cfg.Listen != "" {
		ws := monitor.NewWebServer()
		go func() {
			if err := ws.ListenAndServe(cfg.Listen); err != nil {
				log.Printf("monitor: %v", err)
			}
		}()
		pub = ws
	}

	loop := sim.NewLoop(cfg, store, rec, pub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx, parser); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	loop.Finalize()
	return nil
}

// loadBuildings imports building footprints into an empty spatial database
// so runs are reproducible from flat files. A database that already holds
// buildings is left untouched.
func loadBuildings(index *gis.Store, path string) error {
	n, err := index.CountBuildings()
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("spatial database already holds %d buildings, skipping import", n)
		return nil
	}

	wkts, err := fcd.ReadBuildingFile(path)
	if err != nil {
		return err
	}
	for _, wkt := range wkts {
		if _, err := index.AddBuilding(wkt); err != nil {
			return err
		}
	}
	log.Printf("imported %d building footprints", len(wkts))
	return nil
}
