package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mbertoldi/go-fourd/fourd"
)

var reSpaces = regexp.MustCompile(`\s+`)

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return s[:maxLen]
	}
	return s[:maxLen-1] + "…"
}

func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

const maxCellWidth = 32

var headerStyle = lipgloss.NewStyle().Bold(true)

// renderTable lays out cols/rows as a fixed-width ASCII table, the way a
// psql-ish result pager would, each cell width capped at maxCellWidth.
func renderTable(cols []fourd.ColumnDescription, rows []fourd.Row) string {
	if len(cols) == 0 {
		return ""
	}
	names := make([]string, len(cols))
	widths := make([]int, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		widths[i] = min(max(len(c.Name), 3), maxCellWidth)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		for i := range cols {
			cells[r][i] = truncate(cellString(row.At(i)), maxCellWidth)
			if w := lipgloss.Width(cells[r][i]); w > widths[i] {
				widths[i] = min(w, maxCellWidth)
			}
		}
	}

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(headerStyle.Render(padRight(name, widths[i])))
	}
	b.WriteByte('\n')
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	for _, row := range cells {
		b.WriteByte('\n')
		for i, c := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(padRight(c, widths[i]))
		}
	}
	return b.String()
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case []byte:
		return "\\x" + strconv.Quote(string(t))
	default:
		return fmt.Sprintf("%v", t)
	}
}
