package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/hlc"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

var pkCol = ident.New("id")

func acctRow(id int64, name string) types.Row {
	return types.NewRow(map[ident.Ident]types.Value{
		pkCol:             types.IntegerValue(id),
		ident.New("name"): types.StringValue(name),
	})
}

func recvOutput(t *testing.T, p *Pipeline) Output {
	t.Helper()
	select {
	case out, ok := <-p.Events():
		require.True(t, ok, "pipeline output channel closed unexpectedly")
		return out
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pipeline output")
		return Output{}
	}
}

func TestPipelineSnapshotThenLiveHasNoGapOrOverlap(t *testing.T) {
	c := cache.New("accounts")
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: acctRow(1, "alice"), Frontier: hlc.New(1, 0)})

	p := Open(c, Config{Mode: FullRow, IncludeSnapshot: true, PrimaryKey: pkCol, Source: "accounts"})
	defer p.Close()

	snap := recvOutput(t, p)
	assert.Equal(t, types.Key("1"), snap.Key)

	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "2", RowAfter: acctRow(2, "bob"), Frontier: hlc.New(2, 0)})
	live := recvOutput(t, p)
	assert.Equal(t, types.Key("2"), live.Key)
}

func TestPipelineLiveOnlySkipsSnapshot(t *testing.T) {
	c := cache.New("accounts")
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: acctRow(1, "alice"), Frontier: hlc.New(1, 0)})

	p := Open(c, Config{Mode: FullRow, IncludeSnapshot: false, PrimaryKey: pkCol, Source: "accounts"})
	defer p.Close()

	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "2", RowAfter: acctRow(2, "bob"), Frontier: hlc.New(2, 0)})
	out := recvOutput(t, p)
	assert.Equal(t, types.Key("2"), out.Key, "a live-only pipeline must never see the pre-existing key 1")
}

func TestPipelineDeltaProjectionOnUpdateCarriesOnlyChangedFields(t *testing.T) {
	c := cache.New("accounts")
	p := Open(c, Config{Mode: Delta, IncludeSnapshot: false, PrimaryKey: pkCol, Source: "accounts"})
	defer p.Close()

	c.Apply(types.RowEvent{
		Kind: types.EventUpdate, Key: "1", RowAfter: acctRow(1, "alicia"), Frontier: hlc.New(1, 0),
		ChangedFields: []ident.Ident{ident.New("name")},
	})
	out := recvOutput(t, p)
	assert.Equal(t, types.EventUpdate, out.Kind)

	_, hasID := out.Row.Get(pkCol)
	assert.True(t, hasID, "delta projection always includes the primary key")
	name, hasName := out.Row.Get(ident.New("name"))
	assert.True(t, hasName)
	assert.Equal(t, "alicia", name.Str())
}

func TestPipelineDeltaProjectionOnDeleteCarriesOnlyPrimaryKey(t *testing.T) {
	c := cache.New("accounts")
	p := Open(c, Config{Mode: Delta, IncludeSnapshot: false, PrimaryKey: pkCol, Source: "accounts"})
	defer p.Close()

	c.Apply(types.RowEvent{Kind: types.EventDelete, Key: "1", RowAfter: acctRow(1, "alice"), Frontier: hlc.New(1, 0)})
	out := recvOutput(t, p)
	assert.Equal(t, types.EventDelete, out.Kind)

	_, hasID := out.Row.Get(pkCol)
	assert.True(t, hasID)
	_, hasName := out.Row.Get(ident.New("name"))
	assert.False(t, hasName, "delete projection must not carry non-key columns")
}

func TestPipelineCloseUnsubscribesAndClosesOutput(t *testing.T) {
	c := cache.New("accounts")
	p := Open(c, Config{Mode: FullRow, IncludeSnapshot: false, PrimaryKey: pkCol, Source: "accounts"})
	p.Close()

	select {
	case _, ok := <-p.Events():
		assert.False(t, ok, "Events() must close once the pipeline tears down")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pipeline teardown")
	}

	// The cache must not still be fanning out to the closed pipeline.
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: acctRow(1, "alice"), Frontier: hlc.New(1, 0)})
}
