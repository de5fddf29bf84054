package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// kvTable renders two-column field/value rows.
func kvTable(out io.Writer, rows [][2]string) error {
	table := tablewriter.NewWriter(out)
	table.Header("Field", "Value")
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

func fmtPrice(v float64) string {
	switch {
	case v == 0:
		return "0"
	case v >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.8g", v)
	}
}

func fmtPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func fmtUSD(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
