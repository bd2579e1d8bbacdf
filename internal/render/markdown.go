package render

import (
	"fmt"
	"strings"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/observability"
)

// MarkdownTable renders resolved rows as a Markdown pipe table under a
// heading. Cell segments carrying a reference become inline links.
func MarkdownTable(title string, columns []string, rows []defects.Row) string {
	var b strings.Builder

	if title != "" {
		b.WriteString("### ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}

	b.WriteString("|")
	for _, col := range columns {
		b.WriteString(" ")
		b.WriteString(escapeCell(col))
		b.WriteString(" |")
	}
	b.WriteString("\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString("|")
		for _, cell := range row {
			b.WriteString(" ")
			b.WriteString(renderCell(cell))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	observability.GetMetrics().TablesRendered.Inc()
	return b.String()
}

func renderCell(cell defects.Cell) string {
	var b strings.Builder
	for _, seg := range cell {
		if seg.Ref != "" {
			fmt.Fprintf(&b, "[%s](%s)", escapeCell(seg.Text), seg.Ref)
		} else {
			b.WriteString(escapeCell(seg.Text))
		}
	}
	return b.String()
}

// escapeCell keeps pipes and newlines from breaking the table grid
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
