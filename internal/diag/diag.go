// Package diag provides a small named-component health-check registry,
// in the spirit of the teacher's util/diag.Diagnostics (referenced
// throughout internal/source/logical/provider.go and
// util/stdpool.WithDiagnostics, though that package's source was not
// itself part of the retrieved set). Each source's upstream handler
// and cache register a status function; a diagnostics endpoint
// aggregates them for operators.
package diag

import (
	"sync"

	"github.com/tycoworks/tycostream/internal/hlc"
)

// SourceStatus is a point-in-time snapshot of one source's health.
type SourceStatus struct {
	Source           string
	State            string // e.g. "connecting", "snapshotting", "live", "reconnecting", "fatal"
	Frontier         hlc.Time
	RowCount         int
	SnapshotComplete bool
	LastError        string
	ActiveTriggers   []string
}

// StatusFunc produces the current SourceStatus for one source.
type StatusFunc func() SourceStatus

// Registry aggregates per-source StatusFuncs for a diagnostics
// endpoint. It holds no health state itself: every call to Snapshot
// re-derives status from the live components, so there is nothing to
// go stale.
type Registry struct {
	mu   sync.Mutex
	funcs map[string]StatusFunc
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]StatusFunc)}
}

// Register associates a StatusFunc with a source name, replacing any
// previous registration (used when a source is reconfigured at
// startup; sources are not hot-swapped at runtime).
func (r *Registry) Register(source string, fn StatusFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[source] = fn
}

// Unregister removes a source's StatusFunc, used on source teardown.
func (r *Registry) Unregister(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, source)
}

// Snapshot returns the current status of every registered source.
func (r *Registry) Snapshot() []SourceStatus {
	r.mu.Lock()
	fns := make(map[string]StatusFunc, len(r.funcs))
	for k, v := range r.funcs {
		fns[k] = v
	}
	r.mu.Unlock()

	out := make([]SourceStatus, 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn())
	}
	return out
}
