package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycoworks/tycostream/internal/hlc"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

func row(name, value string) types.Row {
	return types.NewRow(map[ident.Ident]types.Value{
		ident.New(name): types.StringValue(value),
	})
}

func TestSnapshotPartitionsHistoryWithNoGapOrOverlap(t *testing.T) {
	c := New("accounts")

	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: row("name", "alice"), Frontier: hlc.New(1, 0)})
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "2", RowAfter: row("name", "bob"), Frontier: hlc.New(2, 0)})

	events, sub := c.Snapshot(8)
	require.Len(t, events, 2)

	// An event applied after the snapshot was taken must arrive on the
	// subscription, not retroactively in the snapshot.
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "3", RowAfter: row("name", "carol"), Frontier: hlc.New(3, 0)})

	select {
	case e := <-sub.Events():
		assert.Equal(t, types.Key("3"), e.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-snapshot event")
	}

	c.Unsubscribe(sub)
}

func TestApplyEvictsSlowSubscriberWithoutBlocking(t *testing.T) {
	c := New("accounts")
	sub := c.SubscribeLive(1)

	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: row("name", "alice"), Frontier: hlc.New(1, 0)})
	// Second event overflows the capacity-1 queue since nothing has drained it.
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "2", RowAfter: row("name", "bob"), Frontier: hlc.New(2, 0)})

	select {
	case err := <-sub.Errs():
		_, ok := types.IsSubscriberLagged(err)
		assert.True(t, ok, "expected SubscriberLaggedError, got %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for lag eviction")
	}
}

func TestResetBroadcastsUpstreamResyncAndClearsState(t *testing.T) {
	c := New("accounts")
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: row("name", "alice"), Frontier: hlc.New(1, 0)})
	c.MarkSnapshotComplete()

	sub := c.SubscribeLive(4)
	c.Reset()

	select {
	case err := <-sub.Errs():
		_, ok := types.IsUpstreamResync(err)
		assert.True(t, ok, "expected UpstreamResyncError, got %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resync broadcast")
	}

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.SnapshotComplete())
	assert.True(t, c.Frontier().IsZero())
}

func TestRowReturnsCurrentPreState(t *testing.T) {
	c := New("accounts")
	_, ok := c.Row("1")
	assert.False(t, ok)

	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: row("name", "alice"), Frontier: hlc.New(1, 0)})
	got, ok := c.Row("1")
	require.True(t, ok)
	v, _ := got.Get(ident.New("name"))
	assert.Equal(t, "alice", v.Str())
}

func TestWaitFrontierReturnsOnceReached(t *testing.T) {
	c := New("accounts")
	target := hlc.New(5, 0)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- c.WaitFrontier(ctx, target)
	}()

	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "1", RowAfter: row("name", "alice"), Frontier: hlc.New(1, 0)})
	c.Apply(types.RowEvent{Kind: types.EventInsert, Key: "2", RowAfter: row("name", "bob"), Frontier: target})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for WaitFrontier to unblock")
	}
}

func TestWaitFrontierRespectsContextCancellation(t *testing.T) {
	c := New("accounts")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.WaitFrontier(ctx, hlc.New(1, 0))
	assert.ErrorIs(t, err, context.Canceled)
}
