package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable renders rows with the shared summary styling. Columns whose
// cells are all numeric (status counts, token totals) are right-aligned;
// everything else stays left-aligned.
func renderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i, numeric := range numericColumns(rows, columns) {
		align := text.AlignLeft
		if numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// numericColumns reports, per column, whether every non-empty cell parses as
// an integer. Columns with no values stay left-aligned.
func numericColumns(rows [][]string, columns int) []bool {
	numeric := make([]bool, columns)
	for i := 0; i < columns; i++ {
		sawValue := false
		allNumeric := true
		for _, row := range rows {
			if i >= len(row) || row[i] == "" {
				continue
			}
			sawValue = true
			if _, err := strconv.Atoi(row[i]); err != nil {
				allNumeric = false
				break
			}
		}
		numeric[i] = sawValue && allNumeric
	}
	return numeric
}
