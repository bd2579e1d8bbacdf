package defects

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genRecords() gopter.Gen {
	classifications := []interface{}{"Unclassified", "Pending", "Bug", "Intentional", "False Positive"}
	components := []interface{}{"lib", "app", "test", "drivers"}

	genRecord := gopter.CombineGens(
		gen.IntRange(1, 10_000),
		gen.OneConstOf(classifications...),
		gen.OneConstOf(components...),
	).Map(func(values []interface{}) Record {
		return Record{
			CID:            values[0].(int),
			Classification: values[1].(string),
			Component:      values[2].(string),
		}
	})

	return gen.SliceOf(genRecord)
}

func genClassificationSubset() gopter.Gen {
	return gen.SliceOfN(2, gen.OneConstOf(
		"Unclassified", "Pending", "Bug", "Intentional", "False Positive",
	), reflect.TypeOf(""))
}

// Filtering an already-filtered sequence by the same spec returns the
// identical sequence.
func TestFilterIdempotenceProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("apply is idempotent", prop.ForAll(
		func(records []Record, accepted []string) bool {
			spec := NewFilterSpec()
			if err := spec.SetExact(AttrClassification, accepted); err != nil {
				return false
			}
			once := spec.Apply(records)
			twice := spec.Apply(once)
			return reflect.DeepEqual(once, twice)
		},
		genRecords(),
		genClassificationSubset(),
	))

	properties.Property("apply output is a subsequence of its input", prop.ForAll(
		func(records []Record, accepted []string) bool {
			spec := NewFilterSpec()
			if err := spec.SetExact(AttrClassification, accepted); err != nil {
				return false
			}
			filtered := spec.Apply(records)
			i := 0
			for _, r := range records {
				if i < len(filtered) && reflect.DeepEqual(filtered[i], r) {
					i++
				}
			}
			return i == len(filtered)
		},
		genRecords(),
		genClassificationSubset(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// In threshold mode the sum of slice counts always equals the input length.
func TestThresholdCountConservationProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("slice counts sum to the record count", prop.ForAll(
		func(records []Record, threshold int) bool {
			slices, err := Aggregate(records, ChartSpec{
				Attribute: AttrClassification,
				Threshold: threshold,
			})
			if err != nil {
				return false
			}
			total := 0
			for _, s := range slices {
				total += s.Count
			}
			return total == len(records)
		},
		genRecords(),
		gen.IntRange(1, 20),
	))

	properties.Property("the Other slice is never first unless alone", prop.ForAll(
		func(records []Record, threshold int) bool {
			slices, err := Aggregate(records, ChartSpec{
				Attribute: AttrClassification,
				Threshold: threshold,
			})
			if err != nil {
				return false
			}
			for i, s := range slices {
				if s.Label == OtherLabel && i != len(slices)-1 {
					return false
				}
			}
			return true
		},
		genRecords(),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// In explicit-group mode each defect is counted in at most one slice.
func TestExplicitGroupDisjointProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("counted defects never exceed the input", prop.ForAll(
		func(records []Record) bool {
			slices, err := Aggregate(records, ChartSpec{
				Attribute: AttrClassification,
				Groups: [][]string{
					{"Bug"},
					{"Pending", "Unclassified"},
				},
			})
			if err != nil {
				return false
			}
			total := 0
			for _, s := range slices {
				total += s.Count
			}
			return total <= len(records)
		},
		genRecords(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
