package subscriber

import (
	"github.com/tycoworks/tycostream/internal/filter"
	"github.com/tycoworks/tycostream/internal/types"
)

// Decision is the outcome of applying a Filter's asymmetric
// match/unmatch hysteresis to one incoming event (spec §4.4). It is
// shared with the Trigger Engine, which is structurally the same
// state machine driving FIRE/CLEAR instead of Insert/Update/Delete.
type Decision struct {
	Emit bool
	Kind types.EventKind
	// Full indicates the emitted event should carry the complete row
	// rather than only event.ChangedFields — true for every Insert, every
	// Delete and filter-induced resyncs, where no meaningful delta exists.
	// The Delta projection ignores it for Deletes, which always carry only
	// the primary key.
	Full bool
}

// suppress is the zero Decision: no event is emitted.
var suppress = Decision{}

// Decide applies the hysteresis state machine of spec §4.4 to event,
// given the filter f (nil means "no filter": everything passes
// through unmodified) and the per-key Tracker recording whether the
// key is currently considered in-view.
func Decide(f *filter.Filter, tracker *Tracker, event types.RowEvent) Decision {
	if f == nil {
		return Decision{Emit: true, Kind: event.Kind, Full: event.Kind != types.EventUpdate}
	}

	inView := tracker.Get(event.Key)

	if !inView {
		switch event.Kind {
		case types.EventInsert, types.EventUpdate:
			if f.Match.Evaluate(event.RowAfter) {
				tracker.Enter(event.Key)
				return Decision{Emit: true, Kind: types.EventInsert, Full: true}
			}
			return suppress
		case types.EventDelete:
			return suppress
		default:
			return suppress
		}
	}

	switch event.Kind {
	case types.EventInsert:
		// A protocol-level Insert for a key already considered in-view
		// should not occur from a well-behaved upstream; handle it
		// defensively as a reborn key, matching the rest of the state
		// machine.
		if f.Match.Evaluate(event.RowAfter) {
			return Decision{Emit: true, Kind: types.EventUpdate, Full: true}
		}
		tracker.Leave(event.Key)
		return Decision{Emit: true, Kind: types.EventDelete, Full: true}

	case types.EventUpdate:
		if f.DisjointFrom(event.ChangedFields) {
			return Decision{Emit: true, Kind: types.EventUpdate, Full: false}
		}
		if f.Match.Evaluate(event.RowAfter) {
			return Decision{Emit: true, Kind: types.EventUpdate, Full: false}
		}
		var leaves bool
		if f.Unmatch != nil {
			leaves = f.Unmatch.Evaluate(event.RowAfter)
		} else {
			leaves = true // ¬match, since match was already false above
		}
		if leaves {
			tracker.Leave(event.Key)
			return Decision{Emit: true, Kind: types.EventDelete, Full: true}
		}
		// Hysteresis band: neither match nor unmatch; row stays in view.
		return Decision{Emit: true, Kind: types.EventUpdate, Full: false}

	case types.EventDelete:
		tracker.Leave(event.Key)
		return Decision{Emit: true, Kind: types.EventDelete, Full: true}

	default:
		return suppress
	}
}
