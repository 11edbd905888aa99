package main

import "github.com/jedib0t/go-pretty/v6/table"

// renderTable renders listing rows in the rounded box style shared by every
// scout view. Rows shorter than the header are padded with empty cells so
// ragged data (a person without a LinkedIn URL, an undated event) never
// shifts columns.
func renderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}
