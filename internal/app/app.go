// Package app is the composition root: it wires the schema registry,
// per-source caches and upstream handlers, the trigger engine, and the
// API surface together, and implements the ordered shutdown of spec
// §9 (subscribers, then the protocol handlers, then the caches).
//
// It is hand-written in the shape a Wire injector would generate
// (compare internal/source/cdc/wire_gen.go's accumulate-and-unwind
// cleanup pattern) rather than driven by the wire binary itself, since
// this process has a single, fixed composition rather than the
// swappable test/production fixtures cdc-sink's generator targets.
package app

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tycoworks/tycostream/internal/api"
	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/config"
	"github.com/tycoworks/tycostream/internal/diag"
	"github.com/tycoworks/tycostream/internal/schema"
	"github.com/tycoworks/tycostream/internal/stopper"
	"github.com/tycoworks/tycostream/internal/subscriber"
	"github.com/tycoworks/tycostream/internal/trigger"
	"github.com/tycoworks/tycostream/internal/upstream"
	"github.com/tycoworks/tycostream/internal/webhook"
)

// App is the running composition of every source's cache and protocol
// handler, the trigger engine, and the subscribe/trigger API.
type App struct {
	Config   config.Config
	Registry *schema.Registry
	API      *api.API
	Diag     *diag.Registry

	caches   map[string]*cache.Cache
	handlers map[string]*upstream.Handler
	triggers *trigger.Engine
	stop     *stopper.Context

	mu        sync.Mutex
	pipelines map[*subscriber.Pipeline]struct{}
}

// New composes an App from cfg, the configured sources, and the
// already-validated registry. It returns a cleanup func that performs
// the ordered shutdown; callers that own process lifetime should defer
// it (or call Shutdown directly for finer control over the grace
// period).
func New(cfg config.Config, sources []config.SourceConfig, registry *schema.Registry) (*App, func(), error) {
	stop := stopper.WithContext(context.Background())

	caches := make(map[string]*cache.Cache, len(sources))
	handlers := make(map[string]*upstream.Handler, len(sources))
	diagReg := diag.NewRegistry()
	triggers := trigger.NewEngine()

	for _, sc := range sources {
		src, err := registry.Lookup(sc.Name)
		if err != nil {
			return nil, nil, err
		}

		c := cache.New(sc.Name)
		caches[sc.Name] = c

		h := upstream.New(src, c, upstream.Config{
			DSN:               sc.DSN,
			Query:             sc.Query,
			ReconnectMinDelay: cfg.ReconnectMinDelay,
			ReconnectMaxDelay: cfg.ReconnectMaxDelay,
			IdleTimeout:       cfg.IdleTimeout,
		})
		handlers[sc.Name] = h

		name := sc.Name
		diagReg.Register(name, func() diag.SourceStatus {
			return diag.SourceStatus{
				Source:           name,
				State:            h.State(),
				Frontier:         c.Frontier(),
				RowCount:         c.Len(),
				SnapshotComplete: c.SnapshotComplete(),
				LastError:        h.LastError(),
				ActiveTriggers:   triggers.List(name),
			}
		})
	}

	sink := webhook.NewHTTPSink(webhook.Config{
		MaxAttempts: cfg.WebhookMaxAttempts,
		MaxElapsed:  cfg.WebhookMaxElapsed,
	})
	a := api.New(registry, caches, triggers, sink, cfg.DefaultQueueCapacity)

	app := &App{
		Config:    cfg,
		Registry:  registry,
		API:       a,
		Diag:      diagReg,
		caches:    caches,
		handlers:  handlers,
		triggers:  triggers,
		stop:      stop,
		pipelines: make(map[*subscriber.Pipeline]struct{}),
	}

	cleanup := func() {
		if err := app.Shutdown(cfg.ShutdownGrace); err != nil {
			log.WithError(err).Warn("app shutdown did not complete cleanly")
		}
	}
	return app, cleanup, nil
}

// Start launches every source's upstream protocol handler.
func (a *App) Start() {
	for _, h := range a.handlers {
		h.Start(a.stop)
	}
}

// OpenSubscription opens a subscription via the composed API, tracking
// it so Shutdown can close it deterministically ahead of the protocol
// handlers (spec §9's shutdown ordering).
func (a *App) OpenSubscription(req api.SubscribeRequest) (*subscriber.Pipeline, error) {
	p, err := a.API.OpenSubscription(req)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.pipelines[p] = struct{}{}
	a.mu.Unlock()
	return p, nil
}

// CloseSubscription closes and untracks p.
func (a *App) CloseSubscription(p *subscriber.Pipeline) {
	a.mu.Lock()
	delete(a.pipelines, p)
	a.mu.Unlock()
	p.Close()
}

// Shutdown performs the ordered teardown of spec §9: every open
// subscriber pipeline and trigger is closed first (so consumers see a
// clean end-of-stream rather than a connection reset), then the
// upstream protocol handlers are stopped, with up to grace for
// in-flight work — webhook deliveries included — to finish before a
// hard cancel.
func (a *App) Shutdown(grace time.Duration) error {
	a.mu.Lock()
	pipelines := make([]*subscriber.Pipeline, 0, len(a.pipelines))
	for p := range a.pipelines {
		pipelines = append(pipelines, p)
	}
	a.pipelines = make(map[*subscriber.Pipeline]struct{})
	a.mu.Unlock()

	for _, p := range pipelines {
		p.Close()
	}

	for _, src := range a.Registry.All() {
		for _, name := range a.triggers.List(src.Name) {
			_ = a.triggers.Close(src.Name, name)
		}
	}

	return a.stop.Stop(grace)
}
