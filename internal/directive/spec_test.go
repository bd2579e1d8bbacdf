package directive

import (
	"reflect"
	"strings"
	"testing"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/errors"
)

func parseFor(t *testing.T, title string, options map[string]string) *Spec {
	t.Helper()
	spec, err := Parse(Block{Title: title, Options: options, File: "doc.md", Line: 1})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return spec
}

func TestParseDefaults(t *testing.T) {
	spec := parseFor(t, "", nil)

	if spec.Title != "Coverity report" {
		t.Errorf("title = %q", spec.Title)
	}
	if spec.Table == nil {
		t.Fatal("expected default table")
	}
	if !reflect.DeepEqual(spec.Table.Columns, defects.DefaultColumns) {
		t.Errorf("columns = %v, want defaults", spec.Table.Columns)
	}
	if spec.Chart != nil {
		t.Error("no chart expected by default")
	}
	if !spec.Filter.Empty() {
		t.Error("no filter constraints expected by default")
	}
}

func TestParseChartOnlySkipsTable(t *testing.T) {
	spec := parseFor(t, "Charts", map[string]string{"chart": "3"})

	if spec.Table != nil {
		t.Error("chart-only directive must not render a table")
	}
	if spec.Chart == nil {
		t.Fatal("expected chart")
	}
	if spec.Chart.Threshold != 3 || spec.Chart.Attribute != defects.AttrClassification {
		t.Errorf("chart = %+v", spec.Chart)
	}
}

func TestParseColAndWidths(t *testing.T) {
	spec := parseFor(t, "T", map[string]string{
		"col":    "CID, Classification,Comment",
		"widths": "10 30 60",
	})

	want := []string{"CID", "Classification", "Comment"}
	if !reflect.DeepEqual(spec.Table.Columns, want) {
		t.Errorf("columns = %v, want %v", spec.Table.Columns, want)
	}
	if !reflect.DeepEqual(spec.Table.Widths, []int{10, 30, 60}) {
		t.Errorf("widths = %v", spec.Table.Widths)
	}
}

func TestParseWidthsMismatch(t *testing.T) {
	_, err := Parse(Block{
		File: "doc.md", Line: 12,
		Options: map[string]string{"col": "CID,Comment", "widths": "10"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsConfig(err) {
		t.Errorf("expected config error, got %v", err)
	}
	// reported at the directive's source location
	if got := err.Error(); !strings.Contains(got, "doc.md:12") {
		t.Errorf("error %q lacks location", got)
	}
}

func TestParseChartExplicitGroups(t *testing.T) {
	spec := parseFor(t, "", map[string]string{"chart": "Bug,Pending+Unclassified"})

	want := [][]string{{"Bug"}, {"Pending", "Unclassified"}}
	if !reflect.DeepEqual(spec.Chart.Groups, want) {
		t.Errorf("groups = %v, want %v", spec.Chart.Groups, want)
	}
	if spec.Chart.Threshold != 0 {
		t.Errorf("threshold = %d, want 0 in explicit mode", spec.Chart.Threshold)
	}
}

func TestParseChartAttribute(t *testing.T) {
	spec := parseFor(t, "", map[string]string{"chart": "impact:High,Medium+Low"})
	if spec.Chart.Attribute != defects.AttrImpact {
		t.Errorf("attribute = %v, want impact", spec.Chart.Attribute)
	}

	_, err := Parse(Block{Options: map[string]string{"chart": "bogus:3"}})
	if err == nil {
		t.Error("expected error for unknown chart attribute")
	}
}

func TestParseChartInvalid(t *testing.T) {
	for _, value := range []string{"", "0", "-2", "Bug,Bug"} {
		if _, err := Parse(Block{Options: map[string]string{"chart": value}}); err == nil {
			t.Errorf("chart %q: expected error", value)
		}
	}
}

func TestParseFilters(t *testing.T) {
	spec := parseFor(t, "", map[string]string{
		"classification": "Bug,Pending",
		"checker":        "MISRA.*,NULL_RETURNS",
		"cid":            "1, 2,3",
	})

	records := []defects.Record{
		{CID: 1, Classification: "Bug", Checker: "MISRA C-2012 Rule 10.3"},
		{CID: 2, Classification: "Intentional", Checker: "NULL_RETURNS"},
		{CID: 4, Classification: "Bug", Checker: "NULL_RETURNS"},
	}
	filtered := spec.Filter.Apply(records)
	if len(filtered) != 1 || filtered[0].CID != 1 {
		t.Errorf("filtered = %v, want only CID 1", filtered)
	}
}

func TestParseBadCID(t *testing.T) {
	_, err := Parse(Block{Options: map[string]string{"cid": "12,abc"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsConfig(err) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestParseUnknownOption(t *testing.T) {
	_, err := Parse(Block{Options: map[string]string{"severity": "High"}})
	if err == nil {
		t.Fatal("expected error for unknown option")
	}
	if !errors.IsConfig(err) {
		t.Errorf("expected config error, got %v", err)
	}
}
