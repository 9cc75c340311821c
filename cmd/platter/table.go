package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// toRow pads or truncates cells to width so ragged input still lines up.
func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

func alignmentFor(aligns []columnAlignment, column int) text.Align {
	if column < len(aligns) && aligns[column] == alignRight {
		return text.AlignRight
	}
	return text.AlignLeft
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	width := len(headers)
	if width == 0 {
		return ""
	}

	tw := newTableWriter()
	tw.AppendHeader(toRow(headers, width))
	for _, row := range rows {
		tw.AppendRow(toRow(row, width))
	}

	configs := make([]table.ColumnConfig, width)
	for i := range configs {
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       alignmentFor(aligns, i),
			AlignHeader: text.AlignLeft,
		}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderKV renders a two-column key/value table without a header row, used
// for status-style output.
func renderKV(pairs [][2]string) string {
	tw := newTableWriter()
	for _, pair := range pairs {
		tw.AppendRow(table.Row{pair[0], pair[1]})
	}
	return tw.Render()
}
