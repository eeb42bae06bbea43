// Package api is the Go-level External Interface (spec §6): the single
// composition point a transport layer (gRPC, GraphQL subscriptions,
// whatever a caller wires up) calls into to open and close
// subscriptions and triggers. It owns no transport concerns itself.
package api

import (
	"github.com/pkg/errors"

	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/filter"
	"github.com/tycoworks/tycostream/internal/schema"
	"github.com/tycoworks/tycostream/internal/subscriber"
	"github.com/tycoworks/tycostream/internal/trigger"
	"github.com/tycoworks/tycostream/internal/webhook"
)

// ErrUnknownSource is wrapped into the error returned for any
// operation naming a source absent from the registry.
var ErrUnknownSource = errors.New("unknown source")

// API composes the schema registry, per-source caches, the trigger
// engine, and a webhook sink into the subscribe/trigger contract.
type API struct {
	registry *schema.Registry
	caches   map[string]*cache.Cache
	triggers *trigger.Engine
	sink     webhook.Sink

	defaultCapacity int
}

// New constructs an API. caches must contain exactly one *cache.Cache
// per source named in registry.
func New(registry *schema.Registry, caches map[string]*cache.Cache, triggers *trigger.Engine, sink webhook.Sink, defaultCapacity int) *API {
	return &API{
		registry:        registry,
		caches:          caches,
		triggers:        triggers,
		sink:            sink,
		defaultCapacity: defaultCapacity,
	}
}

func (a *API) lookup(source string) (*schema.Source, *cache.Cache, error) {
	src, err := a.registry.Lookup(source)
	if err != nil {
		return nil, nil, err
	}
	c, ok := a.caches[source]
	if !ok {
		return nil, nil, errors.Wrap(ErrUnknownSource, source)
	}
	return src, c, nil
}

// SubscribeRequest parameterizes OpenSubscription.
type SubscribeRequest struct {
	Source          string
	Filter          *filter.Filter // optional
	Mode            subscriber.Mode
	IncludeSnapshot bool
	// Capacity overrides the API's default output-queue capacity when > 0.
	Capacity int
}

// OpenSubscription opens a new Subscriber Pipeline against req.Source,
// per spec §6. The caller reads req's events/errors off the returned
// Pipeline and must call Pipeline.Close when done.
func (a *API) OpenSubscription(req SubscribeRequest) (*subscriber.Pipeline, error) {
	src, c, err := a.lookup(req.Source)
	if err != nil {
		return nil, err
	}

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = a.defaultCapacity
	}

	return subscriber.Open(c, subscriber.Config{
		Filter:          req.Filter,
		Mode:            req.Mode,
		IncludeSnapshot: req.IncludeSnapshot,
		Capacity:        capacity,
		PrimaryKey:      src.PrimaryKey,
		Source:          req.Source,
	}), nil
}

// TriggerRequest parameterizes OpenTrigger.
type TriggerRequest struct {
	Name     string
	Source   string
	Filter   *filter.Filter
	Capacity int
}

// OpenTrigger registers and starts a new Trigger, per spec §6. It
// fails if a trigger with req.Name already exists for req.Source.
func (a *API) OpenTrigger(req TriggerRequest) (*trigger.Trigger, error) {
	_, c, err := a.lookup(req.Source)
	if err != nil {
		return nil, err
	}

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = a.defaultCapacity
	}

	return a.triggers.Open(c, trigger.Config{
		Name:     req.Name,
		Source:   req.Source,
		Filter:   req.Filter,
		Capacity: capacity,
	}, a.sink)
}

// CloseTrigger stops and unregisters the named trigger.
func (a *API) CloseTrigger(source, name string) error {
	return a.triggers.Close(source, name)
}

// Sources returns every registered source descriptor.
func (a *API) Sources() []*schema.Source {
	return a.registry.All()
}
