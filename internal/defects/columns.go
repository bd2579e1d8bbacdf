package defects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/daimoniac/covdocs/internal/errors"
)

// DefaultColumns is the column list used when a directive requests neither
// columns nor a chart.
var DefaultColumns = []string{"CID", "Classification", "Action", "Comment"}

// TableSpec is the table configuration of a single directive: an ordered
// list of requested column names plus optional per-column width weights.
type TableSpec struct {
	Columns []string
	Widths  []int
}

// Validate checks that width weights, when supplied, line up with the
// requested columns.
func (s *TableSpec) Validate() error {
	if len(s.Widths) > 0 && len(s.Widths) != len(s.Columns) {
		return errors.NewConfigf("widths count %d does not match column count %d", len(s.Widths), len(s.Columns))
	}
	return nil
}

// Segment is one piece of a rendered cell: plain text, or a cross-reference
// when Ref is set.
type Segment struct {
	Text string
	Ref  string
}

// Cell is an ordered sequence of segments
type Cell []Segment

// Text returns the cell's concatenated text content, ignoring references
func (c Cell) Text() string {
	var b strings.Builder
	for _, seg := range c {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Row is an ordered sequence of cells matching the requested column order
type Row []Cell

// XRef configures traceability cross-reference injection for free-text
// columns. A nil Pattern disables injection. Relink maps an identifier as it
// appears in defect text to the corrected identifier to reference instead.
type XRef struct {
	Pattern *regexp.Regexp
	Relink  map[string]string
}

// extractor turns one defect record into one cell
type extractor func(r *Record) Cell

// ColumnResolver maps requested logical column names to value-extraction
// functions over a defect record. Unknown names are fatal rather than
// silently dropped, since a silently-missing column would misrepresent the
// report; names matching a checker-property key resolve as extra columns.
type ColumnResolver struct {
	xref   XRef
	urlFor func(cid int) string
}

// NewColumnResolver creates a resolver. urlFor produces the defect server
// URL for a CID cell and may be nil to render CIDs as plain text.
func NewColumnResolver(xref XRef, urlFor func(cid int) string) *ColumnResolver {
	return &ColumnResolver{xref: xref, urlFor: urlFor}
}

func textCell(text string) Cell {
	return Cell{{Text: text}}
}

func (cr *ColumnResolver) resolve(name string) (extractor, error) {
	switch strings.ToLower(name) {
	case "cid":
		return func(r *Record) Cell {
			text := strconv.Itoa(r.CID)
			if cr.urlFor != nil {
				return Cell{{Text: text, Ref: cr.urlFor(r.CID)}}
			}
			return textCell(text)
		}, nil
	case "checker":
		return func(r *Record) Cell { return textCell(r.Checker) }, nil
	case "classification":
		return func(r *Record) Cell { return textCell(r.Classification) }, nil
	case "action":
		return func(r *Record) Cell { return textCell(r.Action) }, nil
	case "status":
		return func(r *Record) Cell { return textCell(r.Status) }, nil
	case "component":
		return func(r *Record) Cell { return textCell(r.Component) }, nil
	case "impact":
		return func(r *Record) Cell { return textCell(r.Impact) }, nil
	case "kind", "issue":
		return func(r *Record) Cell { return textCell(r.Kind) }, nil
	case "cwe":
		return func(r *Record) Cell { return textCell(r.CWE) }, nil
	case "location":
		return func(r *Record) Cell {
			if r.FilePath == "" {
				return textCell("")
			}
			return textCell(fmt.Sprintf("%s#L%d", r.FilePath, r.LineNumber))
		}, nil
	case "comment":
		return func(r *Record) Cell { return cr.linkify(r.Comment) }, nil
	case "reference":
		return func(r *Record) Cell { return cr.linkify(r.ExternalReference) }, nil
	}

	// Extra columns carried in checker properties resolve per record.
	// The resolver cannot tell a property column from a typo, so the key
	// has to exist on at least one fetched record; BuildRows checks that
	// against the full set.
	return nil, fmt.Errorf("resolving column %q: %w", name, errors.ErrUnknownColumn)
}

// linkify scans free text for traceability identifiers and replaces each
// match with a cross-reference segment, consulting the relink table for the
// reference target.
func (cr *ColumnResolver) linkify(text string) Cell {
	if cr.xref.Pattern == nil || text == "" {
		return textCell(text)
	}

	var cell Cell
	remaining := text
	for {
		loc := cr.xref.Pattern.FindStringIndex(remaining)
		if loc == nil {
			break
		}
		if loc[0] > 0 {
			cell = append(cell, Segment{Text: remaining[:loc[0]]})
		}
		item := remaining[loc[0]:loc[1]]
		target := item
		if relinked, ok := cr.xref.Relink[item]; ok {
			target = relinked
		}
		cell = append(cell, Segment{Text: item, Ref: target})
		remaining = remaining[loc[1]:]
	}
	if remaining != "" {
		cell = append(cell, Segment{Text: remaining})
	}
	if cell == nil {
		cell = textCell("")
	}
	return cell
}

// BuildRows renders the requested columns for every matched record,
// preserving both record order and column order. Checker-property columns
// resolve against the full fetched set, not the matched subset, so whether
// a column name is valid never depends on what the filters happened to
// match.
func (cr *ColumnResolver) BuildRows(all, matched []Record, table TableSpec) ([]Row, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	extractors := make([]extractor, len(table.Columns))
	for i, name := range table.Columns {
		ex, err := cr.resolve(name)
		if err != nil {
			if ex = propertyExtractor(all, name); ex == nil {
				return nil, errors.NewConfig(err)
			}
		}
		extractors[i] = ex
	}

	rows := make([]Row, 0, len(matched))
	for i := range matched {
		row := make(Row, len(extractors))
		for j, ex := range extractors {
			row[j] = ex(&matched[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// propertyExtractor resolves a column name against checker-property keys.
// Returns nil when no record carries the key.
func propertyExtractor(records []Record, name string) extractor {
	found := false
	for i := range records {
		if _, ok := records[i].CheckerProperties[name]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return func(r *Record) Cell {
		return textCell(r.CheckerProperties[name])
	}
}
