package trigger

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/webhook"
)

// ErrExists is returned by Engine.Open when a trigger by that name
// already exists for the source (names are unique per source).
var ErrExists = errors.New("trigger already exists for source")

// ErrNotFound is returned by Engine.Close for an unknown trigger.
var ErrNotFound = errors.New("trigger not found")

// Engine owns the set of active Triggers across every source, keyed by
// (source, name). It is the composition point between the API layer's
// OpenTrigger/CloseTrigger contract (spec §6) and individual Triggers.
type Engine struct {
	mu       sync.Mutex
	triggers map[string]map[string]*Trigger
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{triggers: make(map[string]map[string]*Trigger)}
}

// Open registers and starts a new trigger. It returns ErrExists if a
// trigger with cfg.Name already exists for cfg.Source.
func (e *Engine) Open(c *cache.Cache, cfg Config, sink webhook.Sink) (*Trigger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bySource, ok := e.triggers[cfg.Source]
	if !ok {
		bySource = make(map[string]*Trigger)
		e.triggers[cfg.Source] = bySource
	}
	if _, exists := bySource[cfg.Name]; exists {
		return nil, errors.Wrapf(ErrExists, "%s/%s", cfg.Source, cfg.Name)
	}

	t := Open(c, cfg, sink)
	bySource[cfg.Name] = t
	return t, nil
}

// Close stops and unregisters the named trigger for source.
func (e *Engine) Close(source, name string) error {
	e.mu.Lock()
	bySource, ok := e.triggers[source]
	var t *Trigger
	if ok {
		t, ok = bySource[name]
	}
	if ok {
		delete(bySource, name)
	}
	e.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrNotFound, "%s/%s", source, name)
	}
	t.Close()
	return nil
}

// List returns the names of active triggers for source, for
// diagnostics.
func (e *Engine) List(source string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	bySource := e.triggers[source]
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	return names
}

// reapLocked removes a disposed trigger's bookkeeping entry; Reap calls
// it for each trigger whose Err() reports a terminal error. Nothing
// calls Reap automatically, so a disposed trigger stays in List until
// Reap or Close removes it.
func (e *Engine) reapLocked(source, name string) {
	if bySource, ok := e.triggers[source]; ok {
		delete(bySource, name)
	}
}

// Reap scans all registered triggers and drops any that have disposed
// themselves (TriggerOverflow or UpstreamResync), returning the
// (source, name, error) of each one reaped.
func (e *Engine) Reap() []ReapedTrigger {
	e.mu.Lock()
	defer e.mu.Unlock()

	var reaped []ReapedTrigger
	for source, bySource := range e.triggers {
		for name, t := range bySource {
			if err := t.Err(); err != nil {
				reaped = append(reaped, ReapedTrigger{Source: source, Name: name, Err: err})
				e.reapLocked(source, name)
			}
		}
	}
	return reaped
}

// ReapedTrigger describes a trigger Reap found disposed.
type ReapedTrigger struct {
	Source string
	Name   string
	Err    error
}

func (r ReapedTrigger) String() string {
	return fmt.Sprintf("%s/%s: %v", r.Source, r.Name, r.Err)
}
