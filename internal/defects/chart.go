package defects

import (
	"sort"
	"strings"

	"github.com/daimoniac/covdocs/internal/errors"
)

// OtherLabel is the label of the collapsed below-threshold slice
const OtherLabel = "Other"

// ChartSpec configures chart aggregation for one directive. Exactly one of
// Groups (explicit partition) and Threshold (long-tail grouping) is active.
type ChartSpec struct {
	// Attribute is the grouping attribute, defaulting to classification
	// at directive-parse time.
	Attribute Attr

	// Groups is an ordered list of value sets. A set with more than one
	// value forms a merged slice labeled by joining its values with "+".
	// Defects matching no set are excluded from the chart entirely.
	Groups [][]string

	// Threshold is the minimum count for a value to form its own slice;
	// values below it collapse into a single "Other" slice.
	Threshold int
}

// Slice is one labeled group and its count in a chart
type Slice struct {
	Label string
	Count int
}

// Validate checks the mode invariant: exactly one aggregation mode active,
// and explicit value sets non-overlapping.
func (s *ChartSpec) Validate() error {
	if len(s.Groups) > 0 && s.Threshold > 0 {
		return errors.NewConfigf("chart cannot combine explicit groups with a threshold")
	}
	if len(s.Groups) == 0 && s.Threshold <= 0 {
		return errors.NewConfigf("chart needs either explicit groups or a positive threshold")
	}

	seen := make(map[string]struct{})
	for _, group := range s.Groups {
		for _, value := range group {
			if _, dup := seen[value]; dup {
				return errors.NewConfigf("chart value %q appears in more than one group", value)
			}
			seen[value] = struct{}{}
		}
	}
	return nil
}

// Aggregate groups an already-filtered defect sequence into named slices.
// Explicit groups keep their declared order. Threshold slices come back
// ordered by descending count with a stable tie-break on first encounter,
// and the "Other" slice, when present, is always last.
func Aggregate(records []Record, spec ChartSpec) ([]Slice, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if len(spec.Groups) > 0 {
		return aggregateExplicit(records, spec), nil
	}

	slices := aggregateThreshold(records, spec)
	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].Label == OtherLabel {
			return false
		}
		if slices[j].Label == OtherLabel {
			return true
		}
		return slices[i].Count > slices[j].Count
	})
	return slices, nil
}

func aggregateExplicit(records []Record, spec ChartSpec) []Slice {
	// Value sets are disjoint per Validate, so each defect lands in at
	// most one slice. There is no catch-all in explicit mode.
	memberOf := make(map[string]int)
	slices := make([]Slice, 0, len(spec.Groups))
	for i, group := range spec.Groups {
		slices = append(slices, Slice{Label: strings.Join(group, "+")})
		for _, value := range group {
			memberOf[value] = i
		}
	}

	for i := range records {
		if idx, ok := memberOf[records[i].Value(spec.Attribute)]; ok {
			slices[idx].Count++
		}
	}
	return slices
}

func aggregateThreshold(records []Record, spec ChartSpec) []Slice {
	counts := make(map[string]int)
	order := make([]string, 0)
	for i := range records {
		value := records[i].Value(spec.Attribute)
		if _, seen := counts[value]; !seen {
			order = append(order, value)
		}
		counts[value]++
	}

	slices := make([]Slice, 0, len(order))
	other := 0
	for _, value := range order {
		if counts[value] >= spec.Threshold {
			slices = append(slices, Slice{Label: value, Count: counts[value]})
		} else {
			other += counts[value]
		}
	}
	if other > 0 {
		slices = append(slices, Slice{Label: OtherLabel, Count: other})
	}
	return slices
}
