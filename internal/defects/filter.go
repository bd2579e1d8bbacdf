package defects

import (
	"fmt"
	"regexp"

	"github.com/daimoniac/covdocs/internal/errors"
)

// FilterSpec is the filter configuration of a single directive: a conjunction
// of per-attribute predicates over the defect attribute enum. An attribute
// with no predicate imposes no constraint. An attribute configured with an
// empty value set matches nothing; the two cases are kept distinct.
type FilterSpec struct {
	exact    map[Attr]map[string]struct{}
	patterns []*regexp.Regexp // checker predicate, nil when unconfigured
	cids     map[int]struct{} // cid predicate, nil when unconfigured

	hasPatterns bool
	hasCIDs     bool
}

// NewFilterSpec creates an empty filter spec imposing no constraints
func NewFilterSpec() *FilterSpec {
	return &FilterSpec{exact: make(map[Attr]map[string]struct{})}
}

// SetExact configures an exact-match value set for the given attribute.
// Checker and CID are not exact-match attributes and are rejected.
func (s *FilterSpec) SetExact(attr Attr, values []string) error {
	switch attr {
	case AttrChecker:
		return errors.NewConfigf("attribute %q takes patterns, not exact values", attr)
	case AttrCID:
		return errors.NewConfigf("attribute %q takes integer identifiers", attr)
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	s.exact[attr] = set
	return nil
}

// SetCheckerPatterns configures the checker predicate. Each value is a
// regular expression matched against checker names.
func (s *FilterSpec) SetCheckerPatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return errors.NewConfig(fmt.Errorf("invalid checker pattern %q: %w", p, err))
		}
		compiled = append(compiled, re)
	}
	s.patterns = compiled
	s.hasPatterns = true
	return nil
}

// SetCIDs configures the cid predicate as an exact integer-identifier set
func (s *FilterSpec) SetCIDs(ids []int) {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.cids = set
	s.hasCIDs = true
}

// Empty reports whether the spec imposes no constraint at all
func (s *FilterSpec) Empty() bool {
	return len(s.exact) == 0 && !s.hasPatterns && !s.hasCIDs
}

// Match reports whether a record passes every configured predicate
func (s *FilterSpec) Match(r *Record) bool {
	for attr, set := range s.exact {
		if _, ok := set[r.Value(attr)]; !ok {
			return false
		}
	}

	if s.hasPatterns {
		matched := false
		for _, re := range s.patterns {
			if re.MatchString(r.Checker) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if s.hasCIDs {
		if _, ok := s.cids[r.CID]; !ok {
			return false
		}
	}

	return true
}

// Apply returns the records passing the spec, preserving relative order.
// Filtering never errors; an empty result is a valid outcome.
func (s *FilterSpec) Apply(records []Record) []Record {
	if s.Empty() {
		return records
	}
	filtered := make([]Record, 0, len(records))
	for i := range records {
		if s.Match(&records[i]) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered
}
