package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable draws a rounded-border table from string cells. Numeric columns
// are named by index so they right-align; headers and everything else stay
// left-aligned.
func renderTable(headers []string, rows [][]string, numericColumns ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, cells := range rows {
		row := make(table.Row, len(cells))
		for i, cell := range cells {
			row[i] = cell
		}
		tw.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, len(numericColumns))
	for _, idx := range numericColumns {
		configs = append(configs, table.ColumnConfig{
			Number:      idx + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
