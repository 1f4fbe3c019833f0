package sim

import (
	"fmt"
	"log"

	"github.com/banshee-data/vanet.sim/internal/grid"
	"github.com/banshee-data/vanet.sim/internal/stats"
)

// Finalize emits the end-of-run outputs. Statistics emission is
// best-effort: report failures are logged, never returned, so a bad report
// directory cannot fail an otherwise clean run.
func (l *Loop) Finalize() {
	if l.cfg.PrintEndStatistics {
		l.printEndStatistics()
	}
	if l.cfg.PrintMapTime {
		for _, r := range l.store.RSUs() {
			fmt.Printf("rsu=%d map completed t=%.2f covered=%d\n",
				r.ID, r.LastTimeUpdated, r.CoveredCellCount)
		}
	}
	if l.cfg.PrintCombination >= 0 {
		l.printCombination(uint32(l.cfg.PrintCombination))
	}
	if l.cfg.Bruteforce {
		l.bruteforce()
	}
	if l.cfg.ReportDir != "" {
		levels := stats.CoverageStatistics(&l.globalSignal)
		report := stats.NewReport(levels, l.rec, l.timeline)
		if err := report.Write(l.cfg.ReportDir); err != nil {
			log.Printf("report: %v", err)
		} else {
			log.Printf("report %s written to %s", report.RunID, l.cfg.ReportDir)
		}
	}
}

func (l *Loop) printEndStatistics() {
	levels := stats.CoverageStatistics(&l.globalSignal)
	fmt.Printf("final coverage")
	for lvl := 0; lvl <= 5; lvl++ {
		fmt.Printf(" s%d=%d", lvl, levels[lvl])
	}
	fmt.Println()

	times, counts := l.rec.PropagationHistogram()
	for i, t := range times {
		fmt.Printf("propagation t=%.2f deliveries=%d\n", t, counts[i])
	}
	fmt.Printf("total deliveries=%d\n", l.rec.TotalDeliveries())
	if mean, p50, p95, ok := l.rec.PropagationSummary(); ok {
		fmt.Printf("delivery time mean=%.2f p50=%.2f p95=%.2f\n", mean, p50, p95)
	}
}

func (l *Loop) coverageMaps() []*grid.CoverageMap {
	rsus := l.store.RSUs()
	maps := make([]*grid.CoverageMap, len(rsus))
	for i, r := range rsus {
		maps[i] = &r.Coverage
	}
	return maps
}

func (l *Loop) printCombination(mask uint32) {
	c, err := stats.EvaluateCombination(l.coverageMaps(), mask)
	if err != nil {
		log.Printf("combination %#x: %v", mask, err)
		return
	}
	fmt.Printf("combination mask=%#x covered=%d overcoverage=%d\n",
		c.Mask, c.Covered, c.Overcoverage)
}

func (l *Loop) bruteforce() {
	kept, err := stats.EnumerateCombinations(l.coverageMaps())
	if err != nil {
		log.Printf("bruteforce: %v", err)
		return
	}
	for _, c := range kept {
		fmt.Printf("combination mask=%#x covered=%d overcoverage=%d\n",
			c.Mask, c.Covered, c.Overcoverage)
	}
}
