package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/audiolibrelab/soundcheck/internal/analysis"
	"github.com/audiolibrelab/soundcheck/internal/screen"
)

func init() {
	color.NoColor = true
}

func coughResult(t *testing.T) *analysis.Result {
	t.Helper()
	payload := `{"class":"cough","audio_data":[{"x":0,"y":0},{"x":0.25,"y":5},{"x":0.5,"y":2.5},{"x":1,"y":1}],"min_ydata":0,"max_ydata":5,"max_xdata":1}`
	var r analysis.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	return &r
}

func TestChartDomain_Cough(t *testing.T) {
	d := ChartDomain(coughResult(t))
	if d.XMin != 0 || d.XMax != 1 || d.YMin != 0 || d.YMax != 5 {
		t.Errorf("Expected x in [0,1] and y in [0,5], got %+v", d)
	}
}

func TestTicks(t *testing.T) {
	d := Domain{XMin: 0, XMax: 1, YMin: 0, YMax: 5}

	ys := YTicks(d)
	if len(ys) != 10 {
		t.Fatalf("Expected 10 y ticks, got %d", len(ys))
	}
	if ys[0] != 0 || ys[9] != 5 {
		t.Errorf("Expected y ticks to span the domain, got %v", ys)
	}

	xs := XTicks(d)
	if len(xs) != 5 {
		t.Fatalf("Expected 5 x ticks, got %d", len(xs))
	}
	if xs[1] != 0.25 || xs[4] != 1 {
		t.Errorf("Unexpected x ticks %v", xs)
	}
}

func TestChartRender_Labels(t *testing.T) {
	out := DefaultChart().Render(coughResult(t))

	for _, label := range []string{"5.00", "0.00", "0.56", "4.44", "0.25", "0.50", "0.75", "1.00"} {
		if !strings.Contains(out, label) {
			t.Errorf("Expected label %s in chart:\n%s", label, out)
		}
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// 20 plot rows, the axis and the x labels
	if len(lines) != 22 {
		t.Errorf("Expected 22 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[0]), "5.00") {
		t.Errorf("Expected top row to carry the max y label, got %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[19]), "0.00") {
		t.Errorf("Expected bottom row to carry the min y label, got %q", lines[19])
	}
	if strings.Count(out, "•") != 4 {
		t.Errorf("Expected one marker per data point, got %d", strings.Count(out, "•"))
	}
}

func TestChartRender_DegenerateDomain(t *testing.T) {
	r := &analysis.Result{Class: "flat", AudioData: []analysis.Point{{X: 0, Y: 3}, {X: 0, Y: 3}}, MinY: 3, MaxY: 3, MaxX: 0}

	out := Chart{Width: 10, Height: 5}.Render(r)
	if !strings.Contains(out, "3.00") {
		t.Errorf("Expected flat domain to still label ticks, got:\n%s", out)
	}
}

func TestChartRender_PointsOutsideDomainAreClipped(t *testing.T) {
	r := &analysis.Result{AudioData: []analysis.Point{{X: 0, Y: 0}, {X: 50, Y: 100}}, MinY: 0, MaxY: 1, MaxX: 1}

	out := DefaultChart().Render(r)
	if strings.Count(out, "•") != 1 {
		t.Errorf("Expected out-of-range point to be clipped, got %d markers", strings.Count(out, "•"))
	}
}

func TestView_Gating(t *testing.T) {
	chart := DefaultChart()

	empty := View(screen.Snapshot{}, chart)
	if !strings.Contains(empty, RecordLabel) || !strings.Contains(empty, SelectLabel) {
		t.Error("Expected record and select controls to always render")
	}
	if strings.Contains(empty, PlayLabel) {
		t.Error("Expected no playback controls without a selection")
	}

	selected := screen.Snapshot{Selection: &screen.Selection{URI: "/c/x.m4a", FileName: "x.m4a"}}
	out := View(selected, chart)
	if !strings.Contains(out, "File: x.m4a") || !strings.Contains(out, PlayLabel) || !strings.Contains(out, "[ "+ProcessLabel+" ]") {
		t.Errorf("Expected playback controls with a selection, got:\n%s", out)
	}
	if strings.Contains(out, "Class:") {
		t.Error("Expected no chart without a result")
	}

	selected.Processing = true
	if out := View(selected, chart); !strings.Contains(out, ProcessingLabel) {
		t.Errorf("Expected busy label while processing, got:\n%s", out)
	}

	selected.Processing = false
	selected.Result = coughResult(t)
	out = View(selected, chart)
	if !strings.Contains(out, "Class: cough") {
		t.Errorf("Expected classification label, got:\n%s", out)
	}

	var emptyResult analysis.Result
	json.Unmarshal([]byte(`{}`), &emptyResult)
	selected.Result = &emptyResult
	if out := View(selected, chart); strings.Contains(out, "Class:") {
		t.Error("Expected empty result object not to render a chart")
	}
}

func TestView_Recording(t *testing.T) {
	out := View(screen.Snapshot{Recording: true}, DefaultChart())
	if !strings.Contains(out, "Recording...") {
		t.Errorf("Expected recording indicator, got:\n%s", out)
	}
}
