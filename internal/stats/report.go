package stats

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// CoverageSample is one point of the per-tick coverage timeline.
type CoverageSample struct {
	Time    float64
	Covered int
}

// Report renders the end-of-run artefacts: an HTML page with the coverage
// level distribution and the propagation histogram, and a PNG timeline of
// covered cells over simulation time. Every artefact is stamped with a
// fresh run id.
type Report struct {
	RunID    string
	Levels   map[int]int
	Recorder *Recorder
	Timeline []CoverageSample
}

// NewReport builds a report over final run state.
func NewReport(levels map[int]int, rec *Recorder, timeline []CoverageSample) *Report {
	return &Report{
		RunID:    uuid.New().String(),
		Levels:   levels,
		Recorder: rec,
		Timeline: timeline,
	}
}

// Write renders report.html and coverage_timeline.png into dir, creating
// it if needed.
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report dir: %w", err)
	}
	if err := r.writeHTML(filepath.Join(dir, "report.html")); err != nil {
		return err
	}
	return r.writeTimelinePNG(filepath.Join(dir, "coverage_timeline.png"))
}

func (r *Report) writeHTML(path string) error {
	levelAxis := make([]string, 0, 6)
	levelData := make([]opts.BarData, 0, 6)
	for l := 0; l <= 5; l++ {
		levelAxis = append(levelAxis, fmt.Sprintf("signal %d", l))
		levelData = append(levelData, opts.BarData{Value: r.Levels[l]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Coverage by signal level",
			Subtitle: fmt.Sprintf("run %s", r.RunID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(levelAxis).AddSeries("cells", levelData,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	times, counts := r.Recorder.PropagationHistogram()
	timeAxis := make([]string, len(times))
	lineData := make([]opts.LineData, len(times))
	for i, t := range times {
		timeAxis[i] = fmt.Sprintf("%.0f", t)
		lineData[i] = opts.LineData{Value: counts[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Packet deliveries per tick",
			Subtitle: fmt.Sprintf("total %d", r.Recorder.TotalDeliveries()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(timeAxis).AddSeries("deliveries", lineData)

	page := components.NewPage()
	page.AddCharts(bar, line)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report html: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report html: %w", err)
	}
	return nil
}

func (r *Report) writeTimelinePNG(path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Covered cells over time (run %s)", r.RunID)
	p.X.Label.Text = "simulation time (s)"
	p.Y.Label.Text = "covered cells"

	pts := make(plotter.XYs, 0, len(r.Timeline))
	for _, s := range r.Timeline {
		pts = append(pts, plotter.XY{X: s.Time, Y: float64(s.Covered)})
	}
	if len(pts) > 0 {
		ln, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("timeline line: %w", err)
		}
		ln.Width = vg.Points(1)
		p.Add(ln)
	}

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save timeline png: %w", err)
	}
	return nil
}
