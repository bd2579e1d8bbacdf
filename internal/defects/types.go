package defects

import "strconv"

// Built-in Coverity classifications
var ClassificationList = []string{
	"Unclassified",
	"Pending",
	"False Positive",
	"Intentional",
	"Bug",
	"Untested",
	"No Test Needed",
}

// Built-in Coverity actions
var ActionList = []string{
	"Undecided",
	"Fix Required",
	"Fix Submitted",
	"Modeling Required",
	"Ignore",
	"On hold",
	"For Interest Only",
}

// Built-in Coverity impact values
var ImpactList = []string{"High", "Medium", "Low"}

// Built-in Coverity issue kinds
var KindList = []string{"QUALITY", "SECURITY", "TEST"}

// Record is one static-analysis finding as fetched from the defect server.
// It is never mutated after deserialization; all downstream stages read only.
type Record struct {
	CID               int
	Checker           string
	Classification    string
	Action            string
	Status            string
	Component         string
	Impact            string
	Kind              string
	CWE               string
	FilePath          string
	LineNumber        int
	Comment           string
	ExternalReference string
	CheckerProperties map[string]string
}

// Attr identifies one filterable defect attribute. Keeping the attribute set
// as an enum rather than free-form strings makes the filter surface closed
// and statically checkable.
type Attr int

const (
	AttrCID Attr = iota
	AttrChecker
	AttrClassification
	AttrAction
	AttrImpact
	AttrKind
	AttrComponent
	AttrCWE
)

var attrNames = map[Attr]string{
	AttrCID:            "cid",
	AttrChecker:        "checker",
	AttrClassification: "classification",
	AttrAction:         "action",
	AttrImpact:         "impact",
	AttrKind:           "kind",
	AttrComponent:      "component",
	AttrCWE:            "cwe",
}

func (a Attr) String() string {
	if name, ok := attrNames[a]; ok {
		return name
	}
	return "unknown"
}

// Value returns the record's value for the given attribute
func (r *Record) Value(a Attr) string {
	switch a {
	case AttrCID:
		return strconv.Itoa(r.CID)
	case AttrChecker:
		return r.Checker
	case AttrClassification:
		return r.Classification
	case AttrAction:
		return r.Action
	case AttrImpact:
		return r.Impact
	case AttrKind:
		return r.Kind
	case AttrComponent:
		return r.Component
	case AttrCWE:
		return r.CWE
	default:
		return ""
	}
}
