package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Curve is a named series drawn on a shared chart.
type Curve struct {
	Name   string
	Values []float64
}

// Axis fixes the vertical range of a chart. A zero Axis scales to the data.
type Axis struct {
	Min  float64
	Max  float64
	Unit string
}

// PercentAxis is used for hit-rate curves.
var PercentAxis = Axis{Min: 0, Max: 100, Unit: "%"}

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var curveColors = []string{
	"\x1b[37m",
	"\x1b[36m",
	"\x1b[35m",
	"\x1b[33m",
	"\x1b[32m",
	"\x1b[34m",
}

// PlotCurves renders curves as a braille chart. Each curve is downsampled
// to the plot width; shorter curves use one column per value.
func PlotCurves(w io.Writer, title string, curves []Curve, axis Axis, width, height int, color bool) error {
	var kept []Curve
	for _, c := range curves {
		if len(c.Values) > 0 {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	if axis.Max <= axis.Min {
		axis = fitAxis(kept, axis.Unit)
	}

	layers := make([][][]uint8, len(kept))
	for i, c := range kept {
		values := resample(c.Values, width)
		cells := make([][]uint8, height)
		for y := range cells {
			cells[y] = make([]uint8, width)
		}
		prevX, prevY := -1, -1
		for x, v := range values {
			px, py := x*2, dotRow(v, axis, height*4)
			if prevX < 0 {
				setDot(cells, px, py)
			} else {
				line(prevX, prevY, px, py, func(dx, dy int) { setDot(cells, dx, dy) })
			}
			prevX, prevY = px, py
		}
		layers[i] = cells
	}

	top := formatAxisLabel(axis.Max, axis.Unit)
	bottom := formatAxisLabel(axis.Min, axis.Unit)
	labelWidth := maxInt(runewidth.StringWidth(top), runewidth.StringWidth(bottom))

	lines := []string{}
	if title != "" {
		lines = append(lines, title)
	}
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = top
		case height - 1:
			label = bottom
		}
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(label, labelWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for i := range layers {
				if m := layers[i][y][x]; m != 0 {
					if owner < 0 {
						owner = i
					}
					mask |= m
				}
			}
			ch := rune(0x2800 + int(mask))
			if color && owner >= 0 {
				row.WriteString(curveColors[owner%len(curveColors)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		lines = append(lines, row.String())
	}
	legend := make([]string, len(kept))
	for i, c := range kept {
		last := c.Values[len(c.Values)-1]
		label := fmt.Sprintf("%s %s", c.Name, formatAxisLabel(last, axis.Unit))
		if color {
			label = curveColors[i%len(curveColors)] + label + colorReset
		}
		legend[i] = label
	}
	lines = append(lines, "Legend: "+strings.Join(legend, "  "), "")
	return writeLines(w, lines)
}

// PlotWidthFor computes the plot width that fits within totalWidth.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := runewidth.StringWidth("100%") + runewidth.StringWidth(axisSeparator)
	return maxInt(minPlotWidth, totalWidth-axisWidth)
}

// TerminalWidth returns the stdout width, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ColorEnabled reports whether w is a terminal and NO_COLOR is unset.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func fitAxis(curves []Curve, unit string) Axis {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range curves {
		for _, v := range c.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi-lo < 1e-9 {
		lo--
		hi++
	}
	return Axis{Min: lo, Max: hi, Unit: unit}
}

func formatAxisLabel(v float64, unit string) string {
	return fmt.Sprintf("%.0f%s", v, unit)
}

func dotRow(v float64, axis Axis, rows int) int {
	pos := (v - axis.Min) / (axis.Max - axis.Min)
	row := int(math.Round((1 - pos) * float64(rows-1)))
	return maxInt(0, minInt(row, rows-1))
}

// line walks the Bresenham line between two dot coordinates.
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// brailleDots maps (x%2, y%4) within a cell to its dot bit.
var brailleDots = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func setDot(cells [][]uint8, x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(cells) || cx >= len(cells[cy]) {
		return
	}
	cells[cy][cx] |= brailleDots[x%2][y%4]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
