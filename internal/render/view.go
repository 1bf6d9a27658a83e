package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/audiolibrelab/soundcheck/internal/screen"
)

var (
	buttonColor = color.New(color.FgHiWhite, color.BgBlue)
	busyColor   = color.New(color.FgBlack, color.BgYellow)
	recColor    = color.New(color.FgRed, color.Bold)
	classColor  = color.New(color.FgGreen, color.Bold)
)

const (
	RecordLabel     = "Hold to Record"
	SelectLabel     = "Select File"
	PlayLabel       = "Play"
	ProcessLabel    = "Process"
	ProcessingLabel = "Processing..."
)

func button(c *color.Color, label string) string {
	return c.Sprintf("[ %s ]", label)
}

// View renders the whole screen for a snapshot.
// Playback controls need a selection; the chart needs a populated result.
func View(s screen.Snapshot, chart Chart) string {
	var b strings.Builder

	b.WriteString(button(buttonColor, RecordLabel))
	b.WriteString("  ")
	b.WriteString(button(buttonColor, SelectLabel))
	b.WriteString("\n")

	if s.Recording {
		b.WriteString(recColor.Sprint("● Recording..."))
		b.WriteString("\n")
	}

	if s.Selection != nil {
		fmt.Fprintf(&b, "\nFile: %s\n", s.Selection.FileName)
		b.WriteString(button(buttonColor, PlayLabel))
		b.WriteString("  ")
		if s.Processing {
			b.WriteString(button(busyColor, ProcessingLabel))
		} else {
			b.WriteString(button(buttonColor, ProcessLabel))
		}
		b.WriteString("\n")
	}

	if s.Result.Populated() {
		b.WriteString("\n")
		b.WriteString(chart.Render(s.Result))
		fmt.Fprintf(&b, "\nClass: %s\n", classColor.Sprint(s.Result.Class))
	}

	return b.String()
}
