package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportWritesArtefacts(t *testing.T) {
	rec := NewRecorder()
	rec.AddDelivery(10)
	rec.AddDelivery(11)

	levels := map[int]int{0: 2400, 2: 30, 5: 30}
	timeline := []CoverageSample{{Time: 0, Covered: 0}, {Time: 10, Covered: 40}, {Time: 20, Covered: 60}}

	r := NewReport(levels, rec, timeline)
	require.NotEmpty(t, r.RunID)

	dir := filepath.Join(t.TempDir(), "report")
	require.NoError(t, r.Write(dir))

	html, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(html), r.RunID), "report must carry the run id")

	png, err := os.Stat(filepath.Join(dir, "coverage_timeline.png"))
	require.NoError(t, err)
	require.Greater(t, png.Size(), int64(0))
}

func TestReportEmptyRun(t *testing.T) {
	r := NewReport(map[int]int{}, NewRecorder(), nil)
	require.NoError(t, r.Write(filepath.Join(t.TempDir(), "report")))
}
