package subscriber

import (
	"sync"

	"github.com/tycoworks/tycostream/internal/types"
)

// Tracker is a per-subscriber (or, reused, per-trigger) membership map:
// membership[k] = true means an Insert has been emitted for k and no
// Delete has been emitted since. It is private to its owning pipeline
// or trigger — there is no cross-component mutable sharing (spec §5).
type Tracker struct {
	mu sync.Mutex
	m  map[types.Key]bool
}

// NewTracker constructs an empty Tracker; absent keys default to false.
func NewTracker() *Tracker {
	return &Tracker{m: make(map[types.Key]bool)}
}

// Get returns the current membership of k, defaulting to false.
func (t *Tracker) Get(k types.Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m[k]
}

// Enter records that k has entered the view (an Insert was emitted).
func (t *Tracker) Enter(k types.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[k] = true
}

// Leave records that k has left the view (a Delete was emitted),
// dropping the bookkeeping entry entirely so the map does not grow
// without bound over a long-lived row's enter/leave cycles.
func (t *Tracker) Leave(k types.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, k)
}
