package directive

import (
	"strconv"
	"strings"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/errors"
)

// Name is the directive recognized in documentation sources
const Name = "coverity-list"

// Spec is the parsed, validated configuration of one directive block
type Spec struct {
	Title    string
	Location string // "file:line" of the block's opening fence

	// Table is nil when the directive requests a chart without columns
	Table *defects.TableSpec
	// Chart is nil when the directive requests no chart
	Chart *defects.ChartSpec

	Filter *defects.FilterSpec
}

var filterAttrs = map[string]defects.Attr{
	"classification": defects.AttrClassification,
	"action":         defects.AttrAction,
	"impact":         defects.AttrImpact,
	"kind":           defects.AttrKind,
	"component":      defects.AttrComponent,
	"cwe":            defects.AttrCWE,
}

var chartAttrs = map[string]defects.Attr{
	"classification": defects.AttrClassification,
	"checker":        defects.AttrChecker,
	"action":         defects.AttrAction,
	"impact":         defects.AttrImpact,
	"kind":           defects.AttrKind,
	"component":      defects.AttrComponent,
	"cwe":            defects.AttrCWE,
}

// Parse turns a scanned block into a directive spec. Option errors are
// ConfigErrors carrying the block's source location.
func Parse(block Block) (*Spec, error) {
	spec, err := parseOptions(block.Title, block.Options)
	if err != nil {
		return nil, errors.AtLocation(err, block.Location())
	}
	spec.Location = block.Location()
	return spec, nil
}

func parseOptions(title string, options map[string]string) (*Spec, error) {
	spec := &Spec{
		Title:  title,
		Filter: defects.NewFilterSpec(),
	}
	if spec.Title == "" {
		spec.Title = "Coverity report"
	}

	for name, value := range options {
		switch name {
		case "col":
			spec.Table = &defects.TableSpec{Columns: splitCSV(value)}
		case "widths":
			// handled after col below
		case "chart":
			chart, err := parseChart(value)
			if err != nil {
				return nil, err
			}
			spec.Chart = chart
		case "checker":
			if err := spec.Filter.SetCheckerPatterns(splitCSV(value)); err != nil {
				return nil, err
			}
		case "cid":
			ids, err := parseCIDs(value)
			if err != nil {
				return nil, err
			}
			spec.Filter.SetCIDs(ids)
		default:
			attr, ok := filterAttrs[name]
			if !ok {
				return nil, errors.NewConfigf("unknown option %q", name)
			}
			if err := spec.Filter.SetExact(attr, splitCSV(value)); err != nil {
				return nil, err
			}
		}
	}

	// A directive with neither col nor chart falls back to the default
	// table; a chart-only directive renders no table.
	if spec.Table == nil && spec.Chart == nil {
		spec.Table = &defects.TableSpec{Columns: defects.DefaultColumns}
	}

	if widths, ok := options["widths"]; ok {
		if spec.Table == nil {
			return nil, errors.NewConfigf("widths given without columns")
		}
		parsed, err := parseWidths(widths)
		if err != nil {
			return nil, err
		}
		spec.Table.Widths = parsed
		if err := spec.Table.Validate(); err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// parseChart parses the chart option: "[<attribute>:]<spec>" where <spec>
// is either a single integer threshold or comma-separated value groups
// with "+" marking merged slices.
func parseChart(value string) (*defects.ChartSpec, error) {
	chart := &defects.ChartSpec{Attribute: defects.AttrClassification}

	spec := value
	if idx := strings.Index(value, ":"); idx >= 0 {
		attrName := strings.ToLower(strings.TrimSpace(value[:idx]))
		attr, ok := chartAttrs[attrName]
		if !ok {
			return nil, errors.NewConfigf("unknown chart attribute %q", attrName)
		}
		chart.Attribute = attr
		spec = value[idx+1:]
	}

	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.NewConfigf("empty chart spec")
	}

	if threshold, err := strconv.Atoi(spec); err == nil {
		if threshold <= 0 {
			return nil, errors.NewConfigf("chart threshold must be positive, got %d", threshold)
		}
		chart.Threshold = threshold
	} else {
		for _, group := range splitCSV(spec) {
			values := strings.Split(group, "+")
			for i := range values {
				values[i] = strings.TrimSpace(values[i])
			}
			chart.Groups = append(chart.Groups, values)
		}
	}

	if err := chart.Validate(); err != nil {
		return nil, err
	}
	return chart, nil
}

func parseCIDs(value string) ([]int, error) {
	fields := splitCSV(value)
	ids := make([]int, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.NewConfigf("cid %q is not an integer", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseWidths(value string) ([]int, error) {
	fields := strings.Fields(value)
	widths := make([]int, 0, len(fields))
	for _, field := range fields {
		w, err := strconv.Atoi(field)
		if err != nil || w <= 0 {
			return nil, errors.NewConfigf("width %q is not a positive integer", field)
		}
		widths = append(widths, w)
	}
	return widths, nil
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	fields := strings.Split(value, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, strings.TrimSpace(field))
	}
	return out
}
