package render

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// SummaryRow is one line of the post-build console summary
type SummaryRow struct {
	Document   string
	Directives int
	Matched    int
	Tables     int
	Charts     int
	Errors     int
}

// Summary prints the per-document build summary as a console table
func Summary(w io.Writer, rows []SummaryRow) error {
	table := tablewriter.NewTable(w)
	table.Header("Document", "Directives", "Defects", "Tables", "Charts", "Errors")

	for _, r := range rows {
		err := table.Append([]string{
			r.Document,
			fmt.Sprintf("%d", r.Directives),
			fmt.Sprintf("%d", r.Matched),
			fmt.Sprintf("%d", r.Tables),
			fmt.Sprintf("%d", r.Charts),
			fmt.Sprintf("%d", r.Errors),
		})
		if err != nil {
			return err
		}
	}

	return table.Render()
}
