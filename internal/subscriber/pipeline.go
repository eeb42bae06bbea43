// Package subscriber implements the Subscriber Pipeline (spec §4.4):
// the per-subscription composition of a snapshot reader, a live tail
// reader resuming from the exact snapshot frontier, an optional
// hysteresis filter, and a delta/full-row projection.
package subscriber

import (
	"context"
	"sync"

	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/filter"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

// Config parameterizes one Pipeline.
type Config struct {
	// Filter is optional; nil means every row is in view.
	Filter *filter.Filter
	Mode   Mode
	// IncludeSnapshot requests snapshot-then-live delivery; false
	// requests live-only delivery (spec §4.4 Construction, step 1).
	IncludeSnapshot bool
	// Capacity bounds both the cache-facing and the output queue;
	// <= 0 uses fanout.DefaultCapacity.
	Capacity int
	// PrimaryKey names the column the Delta projection always
	// includes.
	PrimaryKey ident.Ident
	Source     string
}

// Pipeline is one active subscription against a Cache.
type Pipeline struct {
	cache *cache.Cache
	cfg   Config

	out  chan Output
	errs chan error

	sub *cache.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Open constructs and starts a Pipeline against c, per Config. The
// snapshot (if requested) and the live registration happen atomically
// inside the Cache, satisfying spec §4.3/O3: no event is missed or
// duplicated across the snapshot/live boundary.
func Open(c *cache.Cache, cfg Config) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cache:  c,
		cfg:    cfg,
		out:    make(chan Output, capacityOf(cfg.Capacity)),
		errs:   make(chan error, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	var snapshot []types.RowEvent
	if cfg.IncludeSnapshot {
		snapshot, p.sub = c.Snapshot(capacityOf(cfg.Capacity))
	} else {
		p.sub = c.SubscribeLive(capacityOf(cfg.Capacity))
	}

	go p.run(snapshot)
	return p
}

func capacityOf(c int) int {
	if c <= 0 {
		return 1024
	}
	return c
}

// Events returns the channel of projected, filtered output events.
func (p *Pipeline) Events() <-chan Output { return p.out }

// Errs returns the channel on which a terminal error (SubscriberLagged
// or UpstreamResync) is delivered before Events() closes. A source that
// goes Fatal leaves the pipeline attached with nothing on this channel,
// and a Close during shutdown ends it without an error.
func (p *Pipeline) Errs() <-chan error { return p.errs }

// Close cancels the subscription (spec §4.6: cancellation unsubscribes
// from the cache, releases the filter, drops queued events). It is
// idempotent.
func (p *Pipeline) Close() {
	p.cancel()
}

func (p *Pipeline) run(snapshot []types.RowEvent) {
	tracker := NewTracker()
	defer p.teardown()

	for _, e := range snapshot {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		if !p.handle(tracker, e) {
			return
		}
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case err, ok := <-p.sub.Errs():
			if ok {
				p.deliverErr(err)
			}
			return
		case e, ok := <-p.sub.Events():
			if !ok {
				return
			}
			if !p.handle(tracker, e) {
				return
			}
		}
	}
}

// handle applies the filter/hysteresis decision and projection to one
// event and attempts delivery. It returns false if the pipeline should
// stop (the output consumer is too slow).
func (p *Pipeline) handle(tracker *Tracker, e types.RowEvent) bool {
	d := Decide(p.cfg.Filter, tracker, e)
	if !d.Emit {
		return true
	}
	out := project(p.cfg.Mode, p.cfg.PrimaryKey, d, e)
	select {
	case p.out <- out:
		return true
	default:
		// The API-layer consumer is not keeping up with the filtered
		// stream; apply the same "drop the subscriber, never the
		// event" policy as the cache's own fan-out.
		p.deliverErr(&types.SubscriberLaggedError{Source: p.cfg.Source})
		return false
	}
}

func (p *Pipeline) deliverErr(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

func (p *Pipeline) teardown() {
	p.closeOnce.Do(func() {
		p.cache.Unsubscribe(p.sub)
		close(p.out)
	})
}
