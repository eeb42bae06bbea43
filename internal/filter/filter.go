package filter

import "github.com/tycoworks/tycostream/internal/ident"

// Filter pairs an asymmetric match/unmatch predicate, implementing the
// hysteresis band of spec §4.4: a row only leaves the view when
// Unmatch (or, absent an explicit Unmatch, ¬Match) evaluates true.
type Filter struct {
	Match   Predicate
	Unmatch Predicate // optional; nil means ¬Match is used

	// dependentFields is the precomputed union of Match's and
	// Unmatch's dependent columns, used to skip predicate evaluation
	// on updates that touch none of them.
	dependentFields map[string]struct{}
}

// New constructs a Filter, precomputing its dependent-column set.
func New(match, unmatch Predicate) *Filter {
	f := &Filter{Match: match, Unmatch: unmatch}
	f.dependentFields = make(map[string]struct{})
	for _, c := range match.Fields() {
		f.dependentFields[c.Raw()] = struct{}{}
	}
	if unmatch != nil {
		for _, c := range unmatch.Fields() {
			f.dependentFields[c.Raw()] = struct{}{}
		}
	}
	return f
}

// DependsOn reports whether col is part of the filter's dependent set.
func (f *Filter) DependsOn(col ident.Ident) bool {
	_, ok := f.dependentFields[col.Raw()]
	return ok
}

// DisjointFrom reports whether none of changedFields are part of the
// filter's dependent set — the condition under which an Update can be
// passed through without re-evaluating the predicate (spec §4.4).
func (f *Filter) DisjointFrom(changedFields []ident.Ident) bool {
	for _, c := range changedFields {
		if f.DependsOn(c) {
			return false
		}
	}
	return true
}
