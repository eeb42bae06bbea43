// Package trigger implements the Trigger Engine (spec §4.5): a filter
// subscription in live-only mode whose output is not a consumer queue
// but a webhook poster. Every emitted Insert decision becomes a FIRE
// notification; every emitted Delete becomes CLEAR; Update decisions
// (hysteresis-band passthrough, disjoint-field passthrough) are
// ignored, since a trigger only cares about membership transitions.
package trigger

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/filter"
	"github.com/tycoworks/tycostream/internal/subscriber"
	"github.com/tycoworks/tycostream/internal/types"
	"github.com/tycoworks/tycostream/internal/webhook"
)

// Config parameterizes one Trigger.
type Config struct {
	Name     string
	Source   string
	Filter   *filter.Filter
	Capacity int // <= 0 uses a small default; triggers are low-volume by nature
}

// Trigger is one active FIRE/CLEAR subscription against a Cache.
type Trigger struct {
	cfg   Config
	sink  webhook.Sink
	cache *cache.Cache

	sub *cache.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	lastErr  error
	disposed bool
}

// Open constructs and starts a Trigger against c, posting FIRE/CLEAR
// events to sink. The trigger disposes itself (see Err) if its
// internal queue overflows; this never affects the source's cache or
// any other subscriber (spec §4.5).
func Open(c *cache.Cache, cfg Config, sink webhook.Sink) *Trigger {
	ctx, cancel := context.WithCancel(context.Background())
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 256
	}
	t := &Trigger{
		cfg:    cfg,
		sink:   sink,
		cache:  c,
		sub:    c.SubscribeLive(capacity),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// Close cancels the trigger and unsubscribes it from its cache.
func (t *Trigger) Close() {
	t.cancel()
	<-t.done
}

// Err returns the error that caused the trigger to dispose itself
// (TriggerOverflowError or UpstreamResyncError), or nil if the trigger
// is still active or was closed normally via Close.
func (t *Trigger) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Trigger) run() {
	tracker := subscriber.NewTracker()
	defer func() {
		t.cache.Unsubscribe(t.sub)
		close(t.done)
	}()

	// The cache's terminal error is watched on its own goroutine, so an
	// eviction disposes the trigger (and cancels an in-flight Post) even
	// while handle is blocked delivering an earlier event.
	go func() {
		select {
		case <-t.ctx.Done():
		case err := <-t.sub.Errs():
			if _, lagged := types.IsSubscriberLagged(err); lagged {
				err = &types.TriggerOverflowError{Trigger: t.cfg.Name}
			}
			t.fail(err)
		}
	}()

	for {
		select {
		case <-t.ctx.Done():
			return
		case e, ok := <-t.sub.Events():
			if !ok {
				return
			}
			if !t.handle(tracker, e) {
				return
			}
		}
	}
}

func (t *Trigger) handle(tracker *subscriber.Tracker, e types.RowEvent) bool {
	d := subscriber.Decide(t.cfg.Filter, tracker, e)
	if !d.Emit {
		return true
	}

	var kind webhook.EventType
	switch d.Kind {
	case types.EventInsert:
		kind = webhook.EventFire
	case types.EventDelete:
		kind = webhook.EventClear
	default:
		return true // Update passthroughs carry no FIRE/CLEAR meaning
	}

	event := webhook.NewEvent(kind, t.cfg.Name, e.RowAfter)
	if err := t.sink.Post(t.ctx, event); err != nil {
		if t.ctx.Err() != nil {
			return false // closing; not a real delivery failure
		}
		log.WithFields(log.Fields{
			"trigger": t.cfg.Name,
			"source":  t.cfg.Source,
			"error":   err,
		}).Error("trigger webhook delivery exhausted retries; disposing trigger")
		t.fail(&types.TriggerOverflowError{Trigger: t.cfg.Name})
		return false
	}
	return true
}

func (t *Trigger) fail(err error) {
	t.mu.Lock()
	t.disposed = true
	t.lastErr = err
	t.mu.Unlock()
	t.cancel()
}
