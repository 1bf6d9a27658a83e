package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/audiolibrelab/soundcheck/internal/analysis"
)

const (
	yTickCount = 10
	xTickCount = 5

	minWidth  = 40
	minHeight = yTickCount
)

// Domain is the visible range of the chart
type Domain struct {
	XMin, XMax float64
	YMin, YMax float64
}

// ChartDomain takes the bounds straight from the payload: x in [0, max_xdata], y in [min_ydata, max_ydata]
func ChartDomain(r *analysis.Result) Domain {
	return Domain{XMin: 0, XMax: r.MaxX, YMin: r.MinY, YMax: r.MaxY}
}

func ticks(min, max float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = min + float64(i)*(max-min)/float64(n-1)
	}
	return out
}

// YTicks returns the vertical tick values, bottom to top
func YTicks(d Domain) []float64 {
	return ticks(d.YMin, d.YMax, yTickCount)
}

// XTicks returns the horizontal tick values, left to right
func XTicks(d Domain) []float64 {
	return ticks(d.XMin, d.XMax, xTickCount)
}

func formatTick(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Chart rasterizes a line chart onto a character grid
type Chart struct {
	Width  int
	Height int
}

func DefaultChart() Chart {
	return Chart{Width: 60, Height: 20}
}

func (c Chart) size() (int, int) {
	w, h := c.Width, c.Height
	if w < minWidth {
		w = minWidth
	}
	if h < minHeight {
		h = minHeight
	}
	return w, h
}

// scale maps v in [min, max] onto [0, cells-1]; a zero-width range maps to 0
func scale(v, min, max float64, cells int) int {
	if max == min {
		return 0
	}
	return int(math.Round((v - min) / (max - min) * float64(cells-1)))
}

// Render draws the result's audio data with labelled axes
func (c Chart) Render(r *analysis.Result) string {
	width, height := c.size()
	d := ChartDomain(r)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	inside := func(col, row int) bool {
		return col >= 0 && col < width && row >= 0 && row < height
	}
	cell := func(p analysis.Point) (int, int) {
		return scale(p.X, d.XMin, d.XMax, width), height - 1 - scale(p.Y, d.YMin, d.YMax, height)
	}

	for i := 1; i < len(r.AudioData); i++ {
		c0, r0 := cell(r.AudioData[i-1])
		c1, r1 := cell(r.AudioData[i])
		if !inside(c0, r0) || !inside(c1, r1) {
			continue
		}
		line(c0, r0, c1, r1, func(col, row int) {
			if grid[row][col] == ' ' {
				grid[row][col] = '·'
			}
		})
	}
	for _, p := range r.AudioData {
		if col, row := cell(p); inside(col, row) {
			grid[row][col] = '•'
		}
	}

	labels := make(map[int]string, yTickCount)
	labelWidth := 0
	for _, v := range YTicks(d) {
		row := height - 1 - scale(v, d.YMin, d.YMax, height)
		labels[row] = formatTick(v)
		if n := len(labels[row]); n > labelWidth {
			labelWidth = n
		}
	}

	data := color.New(color.FgCyan)
	var b strings.Builder
	for row := 0; row < height; row++ {
		fmt.Fprintf(&b, "%*s ┤%s\n", labelWidth, labels[row], data.Sprint(string(grid[row])))
	}
	fmt.Fprintf(&b, "%*s └%s\n", labelWidth, "", strings.Repeat("─", width))
	b.WriteString(strings.Repeat(" ", labelWidth+2))
	b.WriteString(xAxisLabels(d, width))
	b.WriteString("\n")

	return b.String()
}

// xAxisLabels places the x tick labels under their columns without overlapping
func xAxisLabels(d Domain, width int) string {
	xs := XTicks(d)
	axis := []rune(strings.Repeat(" ", width+8))
	next := 0
	for i, v := range xs {
		label := []rune(formatTick(v))
		start := scale(v, d.XMin, d.XMax, width) - len(label)/2
		if i == 0 || start < 0 {
			start = 0
		}
		if i == len(xs)-1 {
			start = width - len(label)
		}
		if start < next {
			start = next
		}
		if start+len(label) > len(axis) {
			continue
		}
		copy(axis[start:], label)
		next = start + len(label) + 1
	}
	return strings.TrimRight(string(axis), " ")
}

// line walks the cells between two points (Bresenham)
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
