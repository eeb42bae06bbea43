package subscriber

import (
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

// Mode selects the output projection (spec §4.4).
type Mode int

const (
	// FullRow emits every event with the complete row.
	FullRow Mode = iota
	// Delta emits only the primary key plus changed fields on Update,
	// and only the primary key on Delete.
	Delta
)

// Output is the event delivered to a subscriber's output queue, after
// filtering and projection.
type Output struct {
	Kind          types.EventKind
	Key           types.Key
	Row           types.Row
	ChangedFields []ident.Ident
}

// project applies mode to (decision, event), producing the Output a
// subscriber actually receives.
func project(mode Mode, pk ident.Ident, d Decision, event types.RowEvent) Output {
	out := Output{Kind: d.Kind, Key: event.Key}

	if mode == FullRow || (d.Full && d.Kind != types.EventDelete) {
		out.Row = event.RowAfter
		return out
	}

	switch d.Kind {
	case types.EventDelete:
		out.Row = pkOnly(event.RowAfter, pk)
	case types.EventUpdate:
		out.Row = subset(event.RowAfter, pk, event.ChangedFields)
		out.ChangedFields = event.ChangedFields
	default: // EventInsert is always full, handled above via d.Full
		out.Row = event.RowAfter
	}
	return out
}

func pkOnly(row types.Row, pk ident.Ident) types.Row {
	v, _ := row.Get(pk)
	return types.NewRow(map[ident.Ident]types.Value{pk: v})
}

func subset(row types.Row, pk ident.Ident, fields []ident.Ident) types.Row {
	values := make(map[ident.Ident]types.Value, len(fields)+1)
	if v, ok := row.Get(pk); ok {
		values[pk] = v
	}
	for _, f := range fields {
		if v, ok := row.Get(f); ok {
			values[f] = v
		}
	}
	return types.NewRow(values)
}
