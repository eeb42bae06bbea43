package upstream

import (
	log "github.com/sirupsen/logrus"

	"github.com/tycoworks/tycostream/internal/hlc"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/schema"
	"github.com/tycoworks/tycostream/internal/types"
)

// record is one decoded wire row: either a progress record (Progress
// true, Diff/Row unset) or a row-change record at the given Diff sign.
type record struct {
	Timestamp int64
	Progress  bool
	Diff      int
	Row       types.Row
	Key       types.Key
}

// coalescer groups records sharing a timestamp and reduces each key's
// diff pair(s) into a single RowEvent, computing changed_fields
// against the cache's pre-state (spec §4.2 "Event coalescing").
//
// It is used by exactly one handler goroutine per source; no locking
// is required.
type coalescer struct {
	source *schema.Source
	preRow func(types.Key) (types.Row, bool) // pre-state lookup, e.g. cache snapshot

	pending    int64 // timestamp currently being accumulated
	havePend   bool
	perKeyDiff map[types.Key]diffEntry
}

type diffEntry struct {
	plus, minus bool
	row         types.Row // the +1 row, when present
}

func newCoalescer(source *schema.Source, preRow func(types.Key) (types.Row, bool)) *coalescer {
	return &coalescer{source: source, preRow: preRow, perKeyDiff: make(map[types.Key]diffEntry)}
}

// Add accumulates one row-change record, emitting the prior
// timestamp's coalesced events via flush if r starts a new timestamp.
func (c *coalescer) Add(r record, out func(hlc.Time, types.RowEvent)) {
	if c.havePend && r.Timestamp != c.pending {
		c.flush(out)
	}
	c.pending = r.Timestamp
	c.havePend = true

	e := c.perKeyDiff[r.Key]
	switch r.Diff {
	case 1:
		e.plus = true
		e.row = r.Row
	case -1:
		e.minus = true
	}
	c.perKeyDiff[r.Key] = e
}

// Flush forces emission of whatever timestamp is currently pending;
// called when a progress record closes out the batch.
func (c *coalescer) Flush(out func(hlc.Time, types.RowEvent)) {
	c.flush(out)
}

func (c *coalescer) flush(out func(hlc.Time, types.RowEvent)) {
	if !c.havePend {
		return
	}
	frontier := hlc.New(c.pending, 0)
	for key, e := range c.perKeyDiff {
		switch {
		case e.plus && e.minus:
			pre, ok := c.preRow(key)
			if !ok {
				log.WithFields(log.Fields{
					"source": c.source.Name,
					"key":    key,
				}).Warn("update with missing pre-state; emitting as insert")
				out(frontier, types.RowEvent{Kind: types.EventInsert, Key: key, RowAfter: e.row, Frontier: frontier})
				continue
			}
			changed := changedFields(c.source, pre, e.row)
			out(frontier, types.RowEvent{
				Kind: types.EventUpdate, Key: key, RowAfter: e.row,
				ChangedFields: changed, Frontier: frontier,
			})
		case e.plus:
			if pre, ok := c.preRow(key); ok {
				log.WithFields(log.Fields{
					"source": c.source.Name,
					"key":    key,
				}).Warn("insert for a key already present; emitting as update")
				out(frontier, types.RowEvent{
					Kind: types.EventUpdate, Key: key, RowAfter: e.row,
					ChangedFields: changedFields(c.source, pre, e.row), Frontier: frontier,
				})
				continue
			}
			out(frontier, types.RowEvent{Kind: types.EventInsert, Key: key, RowAfter: e.row, Frontier: frontier})
		case e.minus:
			pre, _ := c.preRow(key)
			out(frontier, types.RowEvent{Kind: types.EventDelete, Key: key, RowAfter: pre, Frontier: frontier})
		}
	}
	c.perKeyDiff = make(map[types.Key]diffEntry)
	c.havePend = false
}

// changedFields compares pre and post rows over every non-primary-key
// column declared by source, per spec §4.2's "changed_fields
// computation": unequal values, including null-vs-nonnull, enter the
// set.
func changedFields(source *schema.Source, pre, post types.Row) []ident.Ident {
	var changed []ident.Ident
	for _, col := range source.Columns {
		if col.Name.Equal(source.PrimaryKey) {
			continue
		}
		preV, _ := pre.Get(col.Name)
		postV, _ := post.Get(col.Name)
		if !types.Equal(preV, postV) {
			changed = append(changed, col.Name)
		}
	}
	return changed
}
