package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

func rowWithQty(qty int64) types.Row {
	return types.NewRow(map[ident.Ident]types.Value{
		ident.New("qty"): types.IntegerValue(qty),
	})
}

func TestCompareOperators(t *testing.T) {
	col := ident.New("qty")
	row := rowWithQty(10)

	cases := []struct {
		op   Op
		lit  int64
		want bool
	}{
		{OpEq, 10, true},
		{OpEq, 5, false},
		{OpNeq, 5, true},
		{OpNeq, 10, false},
		{OpLt, 20, true},
		{OpLt, 10, false},
		{OpLte, 10, true},
		{OpGt, 5, true},
		{OpGte, 10, true},
	}
	for _, c := range cases {
		p := Compare(col, c.op, types.IntegerValue(c.lit))
		assert.Equal(t, c.want, p.Evaluate(row))
	}
}

func TestCompareAgainstMissingOrNullColumnIsAlwaysFalse(t *testing.T) {
	row := types.NewRow(nil)
	p := Compare(ident.New("qty"), OpNeq, types.IntegerValue(0))
	assert.False(t, p.Evaluate(row))

	nullRow := types.NewRow(map[ident.Ident]types.Value{
		ident.New("qty"): types.Null(types.DataTypeInteger),
	})
	assert.False(t, p.Evaluate(nullRow))
}

func TestAndOrNot(t *testing.T) {
	row := rowWithQty(10)
	ge5 := Compare(ident.New("qty"), OpGte, types.IntegerValue(5))
	lt5 := Compare(ident.New("qty"), OpLt, types.IntegerValue(5))

	assert.True(t, And(ge5).Evaluate(row))
	assert.False(t, And(ge5, lt5).Evaluate(row))
	assert.True(t, Or(ge5, lt5).Evaluate(row))
	assert.True(t, Not(lt5).Evaluate(row))
}

func TestAndWithNoChildrenIsVacuouslyTrue(t *testing.T) {
	assert.True(t, And().Evaluate(rowWithQty(0)))
}

func TestOrWithNoChildrenIsVacuouslyFalse(t *testing.T) {
	assert.False(t, Or().Evaluate(rowWithQty(0)))
}

func TestFilterDependentFieldsAndDisjointFrom(t *testing.T) {
	match := Compare(ident.New("qty"), OpGte, types.IntegerValue(100))
	unmatch := Compare(ident.New("qty"), OpLt, types.IntegerValue(50))
	f := New(match, unmatch)

	assert.True(t, f.DependsOn(ident.New("qty")))
	assert.False(t, f.DependsOn(ident.New("name")))

	assert.True(t, f.DisjointFrom([]ident.Ident{ident.New("name")}))
	assert.False(t, f.DisjointFrom([]ident.Ident{ident.New("qty"), ident.New("name")}))
}

func TestFilterWithNoExplicitUnmatchUsesNegatedMatch(t *testing.T) {
	match := Compare(ident.New("qty"), OpGte, types.IntegerValue(100))
	f := New(match, nil)
	assert.Nil(t, f.Unmatch)
	assert.True(t, f.DependsOn(ident.New("qty")))
}
