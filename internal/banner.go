package internal

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Field is one line of a startup banner.
type Field struct {
	Name  string
	Value string
}

// PrintBanner renders a two-column summary of how a binary was started.
func PrintBanner(w io.Writer, title string, fields ...Field) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{title, ""})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, f := range fields {
		table.Append([]string{f.Name, f.Value})
	}
	table.Render()
}
