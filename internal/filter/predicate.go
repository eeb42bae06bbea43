// Package filter implements row-local boolean predicates: a tree of
// And/Or/Not/Compare nodes (spec §4.4, §9) with a precomputed
// dependent-column set so that subscriber pipelines can skip
// re-evaluation when an update touches none of a predicate's columns.
package filter

import (
	"math/big"

	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

// Predicate is a pure, side-effect-free row-local boolean expression.
type Predicate interface {
	// Evaluate returns the predicate's truth value for row.
	Evaluate(row types.Row) bool
	// Fields returns the set of columns this predicate depends on.
	Fields() []ident.Ident
}

// Op is a comparison operator usable in a Compare leaf.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
)

// and is the conjunction of its children.
type and struct {
	children []Predicate
	fields   []ident.Ident
}

// And constructs a conjunction. An empty And evaluates to true.
func And(children ...Predicate) Predicate {
	return &and{children: children, fields: unionFields(children)}
}

func (a *and) Evaluate(row types.Row) bool {
	for _, c := range a.children {
		if !c.Evaluate(row) {
			return false
		}
	}
	return true
}

func (a *and) Fields() []ident.Ident { return a.fields }

// or is the disjunction of its children.
type or struct {
	children []Predicate
	fields   []ident.Ident
}

// Or constructs a disjunction. An empty Or evaluates to false.
func Or(children ...Predicate) Predicate {
	return &or{children: children, fields: unionFields(children)}
}

func (o *or) Evaluate(row types.Row) bool {
	for _, c := range o.children {
		if c.Evaluate(row) {
			return true
		}
	}
	return false
}

func (o *or) Fields() []ident.Ident { return o.fields }

// not negates its child.
type not struct {
	child Predicate
}

// Not constructs a negation.
func Not(child Predicate) Predicate { return &not{child: child} }

func (n *not) Evaluate(row types.Row) bool { return !n.child.Evaluate(row) }
func (n *not) Fields() []ident.Ident       { return n.child.Fields() }

// compare is a leaf predicate comparing a single column against a
// literal value using Op.
type compare struct {
	column  ident.Ident
	op      Op
	literal types.Value
}

// Compare constructs a leaf predicate: column `op` literal.
func Compare(column ident.Ident, op Op, literal types.Value) Predicate {
	return &compare{column: column, op: op, literal: literal}
}

func (c *compare) Fields() []ident.Ident { return []ident.Ident{c.column} }

func (c *compare) Evaluate(row types.Row) bool {
	v, ok := row.Get(c.column)
	if !ok || v.IsNull() || c.literal.IsNull() {
		// SQL-style: comparisons against missing or null values are
		// never true, including for OpNeq.
		return false
	}
	cmp, ok := compareValues(v, c.literal)
	if !ok {
		return false
	}
	switch c.op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// compareValues orders two values of compatible type. The second
// return is false if the types are not ordered-comparable.
func compareValues(a, b types.Value) (int, bool) {
	if a.Type() != b.Type() {
		return 0, false
	}
	switch a.Type() {
	case types.DataTypeInteger:
		return cmpInt64(a.Int(), b.Int()), true
	case types.DataTypeBigInt:
		ab, bb := a.BigInt(), b.BigInt()
		if ab == nil || bb == nil {
			return 0, false
		}
		return ab.Cmp(bb), true
	case types.DataTypeFloat:
		return cmpFloat64(a.Float(), b.Float()), true
	case types.DataTypeString, types.DataTypeJSON, types.DataTypeArray:
		switch {
		case a.Str() < b.Str():
			return -1, true
		case a.Str() > b.Str():
			return 1, true
		default:
			return 0, true
		}
	case types.DataTypeTimestamp, types.DataTypeDate, types.DataTypeTime:
		switch {
		case a.Time().Before(b.Time()):
			return -1, true
		case a.Time().After(b.Time()):
			return 1, true
		default:
			return 0, true
		}
	case types.DataTypeBoolean:
		if a.Bool() == b.Bool() {
			return 0, true
		}
		if !a.Bool() && b.Bool() {
			return -1, true
		}
		return 1, true
	case types.DataTypeUUID:
		av, bv := a.UUID().String(), b.UUID().String()
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func unionFields(ps []Predicate) []ident.Ident {
	seen := make(map[string]ident.Ident)
	for _, p := range ps {
		for _, f := range p.Fields() {
			seen[f.Raw()] = f
		}
	}
	out := make([]ident.Ident, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	return out
}

// BigIntLiteral is a convenience constructor for a big.Int-valued
// Compare literal.
func BigIntLiteral(i int64) types.Value {
	return types.BigIntValue(big.NewInt(i))
}
