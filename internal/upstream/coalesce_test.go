package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycoworks/tycostream/internal/hlc"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/schema"
	"github.com/tycoworks/tycostream/internal/types"
)

var testSource = &schema.Source{
	Name:       "accounts",
	PrimaryKey: ident.New("id"),
	Columns: []schema.Column{
		{Name: ident.New("id"), Type: types.DataTypeInteger},
		{Name: ident.New("name"), Type: types.DataTypeString},
	},
}

func testRow(id int64, name string) types.Row {
	return types.NewRow(map[ident.Ident]types.Value{
		ident.New("id"):   types.IntegerValue(id),
		ident.New("name"): types.StringValue(name),
	})
}

func noPreState(types.Key) (types.Row, bool) { return types.Row{}, false }

func TestCoalesceLonePlusOneIsInsert(t *testing.T) {
	var got []types.RowEvent
	c := newCoalescer(testSource, noPreState)
	c.Add(record{Timestamp: 10, Diff: 1, Row: testRow(1, "alice"), Key: "1"}, func(f hlc.Time, e types.RowEvent) {
		got = append(got, e)
	})
	c.Flush(func(f hlc.Time, e types.RowEvent) { got = append(got, e) })

	require.Len(t, got, 1)
	assert.Equal(t, types.EventInsert, got[0].Kind)
	assert.Equal(t, hlc.New(10, 0), got[0].Frontier)
}

func TestCoalesceLoneMinusOneIsDeleteWithPreState(t *testing.T) {
	pre := testRow(1, "alice")
	preState := func(k types.Key) (types.Row, bool) { return pre, true }

	var got []types.RowEvent
	c := newCoalescer(testSource, preState)
	c.Add(record{Timestamp: 10, Diff: -1, Key: "1"}, func(f hlc.Time, e types.RowEvent) { got = append(got, e) })
	c.Flush(func(f hlc.Time, e types.RowEvent) { got = append(got, e) })

	require.Len(t, got, 1)
	assert.Equal(t, types.EventDelete, got[0].Kind)
	v, _ := got[0].RowAfter.Get(ident.New("name"))
	assert.Equal(t, "alice", v.Str())
}

func TestCoalescePlusMinusPairIsUpdateWithChangedFields(t *testing.T) {
	pre := testRow(1, "alice")
	preState := func(k types.Key) (types.Row, bool) { return pre, true }

	var got []types.RowEvent
	c := newCoalescer(testSource, preState)
	c.Add(record{Timestamp: 10, Diff: -1, Key: "1"}, func(f hlc.Time, e types.RowEvent) { got = append(got, e) })
	c.Add(record{Timestamp: 10, Diff: 1, Row: testRow(1, "alicia"), Key: "1"}, func(f hlc.Time, e types.RowEvent) { got = append(got, e) })
	c.Flush(func(f hlc.Time, e types.RowEvent) { got = append(got, e) })

	require.Len(t, got, 1)
	assert.Equal(t, types.EventUpdate, got[0].Kind)
	require.Len(t, got[0].ChangedFields, 1)
	assert.Equal(t, "name", got[0].ChangedFields[0].Raw())
}

func TestCoalesceUpdateWithMissingPreStateFallsBackToInsert(t *testing.T) {
	var got []types.RowEvent
	c := newCoalescer(testSource, noPreState)
	c.Add(record{Timestamp: 10, Diff: -1, Key: "1"}, func(f hlc.Time, e types.RowEvent) { got = append(got, e) })
	c.Add(record{Timestamp: 10, Diff: 1, Row: testRow(1, "alicia"), Key: "1"}, func(f hlc.Time, e types.RowEvent) { got = append(got, e) })
	c.Flush(func(f hlc.Time, e types.RowEvent) { got = append(got, e) })

	require.Len(t, got, 1)
	assert.Equal(t, types.EventInsert, got[0].Kind, "missing pre-state must fall back to Insert, not panic or drop")
}

func TestCoalesceFlushesPriorTimestampOnNewTimestamp(t *testing.T) {
	var got []types.RowEvent
	emit := func(f hlc.Time, e types.RowEvent) { got = append(got, e) }
	c := newCoalescer(testSource, noPreState)

	c.Add(record{Timestamp: 10, Diff: 1, Row: testRow(1, "alice"), Key: "1"}, emit)
	// A record at a later timestamp must flush timestamp 10 first.
	c.Add(record{Timestamp: 11, Diff: 1, Row: testRow(2, "bob"), Key: "2"}, emit)

	require.Len(t, got, 1, "timestamp 10 should have flushed automatically")
	assert.Equal(t, types.Key("1"), got[0].Key)

	c.Flush(emit)
	require.Len(t, got, 2)
	assert.Equal(t, types.Key("2"), got[1].Key)
}

func TestChangedFieldsExcludesPrimaryKey(t *testing.T) {
	pre := testRow(1, "alice")
	post := testRow(2, "alice") // id changed, but id is the primary key
	changed := changedFields(testSource, pre, post)
	assert.Empty(t, changed, "primary key must never appear in changed_fields")
}
