// Package cache implements the Source Cache (spec §4.3): the single
// authoritative, single-writer/many-reader mapping from primary-key
// value to current row for one source, and the atomic snapshot+live
// handoff that every subscriber pipeline builds on.
package cache

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tycoworks/tycostream/internal/fanout"
	"github.com/tycoworks/tycostream/internal/hlc"
	"github.com/tycoworks/tycostream/internal/metrics"
	"github.com/tycoworks/tycostream/internal/notify"
	"github.com/tycoworks/tycostream/internal/types"
)

var (
	cacheRowCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cache_rows",
		Help: "the number of rows currently held in a source's cache",
	}, metrics.SourceLabels)
	cacheSubscriberDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_subscriber_drops_total",
		Help: "the number of subscribers evicted for a full output queue",
	}, metrics.SourceLabels)
)

// Subscription is a live registration against a Cache. Events applied
// to the cache after registration are delivered on Events(); Errs()
// carries a single terminal error (SubscriberLagged or UpstreamResync)
// if the subscription is torn down by the cache rather than by the
// caller's own Unsubscribe.
type Subscription struct {
	queue *fanout.Queue[types.RowEvent]
	errs  chan error

	source string
	id     uint64
}

// Events returns the channel of live row events for this subscription.
func (s *Subscription) Events() <-chan types.RowEvent { return s.queue.Chan() }

// Errs returns the channel on which a terminal error is delivered if
// the cache itself tears the subscription down.
func (s *Subscription) Errs() <-chan error { return s.errs }

// Cache is the Source Cache for exactly one source. There must be
// exactly one writer (the upstream protocol handler); any number of
// readers may hold Subscriptions or call Snapshot concurrently.
type Cache struct {
	source string

	mu       sync.Mutex
	rows     map[types.Key]types.Row
	frontier hlc.Time
	snapDone bool

	subs   map[uint64]*Subscription
	nextID uint64

	frontierVar *notify.Var[hlc.Time]
}

// New constructs an empty Cache for the named source.
func New(source string) *Cache {
	return &Cache{
		source:      source,
		rows:        make(map[types.Key]types.Row),
		subs:        make(map[uint64]*Subscription),
		frontierVar: notify.New(hlc.Zero()),
	}
}

// Apply updates the cache per event.Kind, advances the frontier, and
// publishes the event to every live subscriber. It must be called, in
// order, only by the source's single upstream protocol handler (I1,
// I3). Apply never blocks: a subscriber whose queue is full is evicted
// and signaled SubscriberLagged rather than allowed to stall the
// writer (spec §4.3 "slow readers", §4.6).
func (c *Cache) Apply(event types.RowEvent) {
	c.mu.Lock()
	switch event.Kind {
	case types.EventInsert, types.EventUpdate:
		c.rows[event.Key] = event.RowAfter
	case types.EventDelete:
		delete(c.rows, event.Key)
	}
	c.frontier = event.Frontier
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	cacheRowCount.WithLabelValues(c.source).Set(float64(len(c.rows)))
	c.mu.Unlock()

	c.frontierVar.Set(event.Frontier)

	for _, s := range subs {
		if err := s.queue.TryPush(event); err != nil {
			c.evict(s, &types.SubscriberLaggedError{Source: c.source})
		}
	}
}

// MarkSnapshotComplete records that the first progress record has been
// observed; per I4, once true this never reverts (aside from a full
// Reset on reconnect, which represents a new cache lifetime).
func (c *Cache) MarkSnapshotComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapDone = true
}

// SnapshotComplete reports whether the initial snapshot has finished.
func (c *Cache) SnapshotComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapDone
}

// Frontier returns the cache's current frontier token.
func (c *Cache) Frontier() hlc.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frontier
}

// Snapshot atomically captures the current rows as synthetic Insert
// events and registers a live subscription starting exactly at that
// point, satisfying spec §4.3's hardest invariant: the returned rows
// and the subscription's live stream partition the event history with
// no gap and no overlap. The snapshot iteration order is stable within
// one call but otherwise unspecified (spec §4.3 policy note).
func (c *Cache) Snapshot(capacity int) ([]types.RowEvent, *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]types.RowEvent, 0, len(c.rows))
	for key, row := range c.rows {
		events = append(events, types.RowEvent{
			Kind:     types.EventInsert,
			Key:      key,
			RowAfter: row,
			Frontier: c.frontier,
		})
	}
	sub := c.registerLocked(capacity)
	return events, sub
}

// SubscribeLive registers a live-only subscription (no snapshot half),
// used for include_snapshot=false subscribers and for the Trigger
// Engine (spec §4.5, which is structurally a live-only filter
// subscription).
func (c *Cache) SubscribeLive(capacity int) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerLocked(capacity)
}

func (c *Cache) registerLocked(capacity int) *Subscription {
	c.nextID++
	sub := &Subscription{
		queue:  fanout.NewQueue[types.RowEvent](capacity),
		errs:   make(chan error, 1),
		source: c.source,
		id:     c.nextID,
	}
	c.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub from the cache's fan-out list and releases
// its queue. It is idempotent and safe to call from the subscriber
// side on cancellation (spec §4.6).
func (c *Cache) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	delete(c.subs, sub.id)
	c.mu.Unlock()
	sub.queue.Close()
}

// evict removes sub from the fan-out list, signals err on its error
// channel, and closes its queue. Used for both slow-consumer eviction
// and Resync broadcast.
func (c *Cache) evict(sub *Subscription, err error) {
	c.mu.Lock()
	_, present := c.subs[sub.id]
	delete(c.subs, sub.id)
	c.mu.Unlock()
	if !present {
		return
	}
	cacheSubscriberDrops.WithLabelValues(c.source).Inc()
	select {
	case sub.errs <- err:
	default:
	}
	sub.queue.Close()
}

// Reset clears the cache's rows and snapshot-complete flag (entry into
// the upstream handler's Snapshotting state after a reconnect) and
// evicts every current subscriber with UpstreamResync: they must
// re-subscribe to receive a fresh, consistent snapshot (spec §4.2).
func (c *Cache) Reset() {
	c.mu.Lock()
	c.rows = make(map[types.Key]types.Row)
	c.frontier = hlc.Zero()
	c.snapDone = false
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		c.evict(s, &types.UpstreamResyncError{Source: c.source})
	}
	c.frontierVar.Set(hlc.Zero())
}

// WaitFrontier blocks until the cache's frontier reaches or passes at
// least, or ctx is done. It lets a caller (a readiness probe, or a
// test driving an upstream handler) observe catch-up without polling
// Frontier in a loop.
func (c *Cache) WaitFrontier(ctx context.Context, at hlc.Time) error {
	for {
		current, changed := c.frontierVar.Get()
		if !hlc.Less(current, at) {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Row returns the current cached row for key, for the upstream
// protocol handler's pre-state lookup when computing changed_fields.
func (c *Cache) Row(key types.Key) (types.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[key]
	return row, ok
}

// Len returns the current row count, for diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}
