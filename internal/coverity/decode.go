package coverity

import (
	"fmt"
	"strconv"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/errors"
)

// decodeRow turns one column-keyed row of the search response into a defect
// record. The cid column is required; any column key outside the known set
// is kept as a checker property under its display label so directives can
// request it as an extra column.
func decodeRow(row []rowValue, labels map[string]string) (defects.Record, error) {
	record := defects.Record{}
	sawCID := false

	for _, kv := range row {
		switch kv.Key {
		case "cid":
			cid, err := strconv.Atoi(kv.Value)
			if err != nil {
				return defects.Record{}, fmt.Errorf("bad cid %q: %w", kv.Value, errors.ErrMalformedResponse)
			}
			record.CID = cid
			sawCID = true
		case "checker":
			record.Checker = kv.Value
		case "classification":
			record.Classification = kv.Value
		case "action":
			record.Action = kv.Value
		case "status":
			record.Status = kv.Value
		case "displayComponent":
			record.Component = kv.Value
		case "displayImpact":
			record.Impact = kv.Value
		case "displayIssueKind":
			record.Kind = kv.Value
		case "cwe":
			record.CWE = kv.Value
		case "displayFile":
			record.FilePath = kv.Value
		case "lineNumber":
			if n, err := strconv.Atoi(kv.Value); err == nil {
				record.LineNumber = n
			}
		case "lastTriageComment":
			record.Comment = kv.Value
		case "externalReference":
			record.ExternalReference = kv.Value
		default:
			if record.CheckerProperties == nil {
				record.CheckerProperties = make(map[string]string)
			}
			label := kv.Key
			if name, ok := labels[kv.Key]; ok && name != "" {
				label = name
			}
			record.CheckerProperties[label] = kv.Value
		}
	}

	if !sawCID {
		return defects.Record{}, fmt.Errorf("missing cid: %w", errors.ErrMalformedResponse)
	}
	return record, nil
}
