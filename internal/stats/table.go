package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// formatTable lays rows out in space-separated columns sized to the widest
// cell. Columns listed in right are right-aligned.
func formatTable(headers []string, rows [][]string, right ...int) []string {
	all := rows
	if len(headers) > 0 {
		all = append([][]string{headers}, rows...)
	}
	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	if len(widths) == 0 {
		return nil
	}

	alignRight := make([]bool, len(widths))
	for _, col := range right {
		if col >= 0 && col < len(alignRight) {
			alignRight[col] = true
		}
	}

	out := make([]string, len(all))
	cells := make([]string, len(widths))
	for r, row := range all {
		for i, w := range widths {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if alignRight[i] {
				cells[i] = runewidth.FillLeft(cell, w)
			} else {
				cells[i] = runewidth.FillRight(cell, w)
			}
		}
		out[r] = strings.Join(cells, " ")
	}
	return out
}
