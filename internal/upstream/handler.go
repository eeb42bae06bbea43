package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tycoworks/tycostream/internal/cache"
	"github.com/tycoworks/tycostream/internal/hlc"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/schema"
	"github.com/tycoworks/tycostream/internal/stopper"
	"github.com/tycoworks/tycostream/internal/types"
)

// Handler is the protocol handler for one source: one long-lived
// SUBSCRIBE session, reconnected with backoff on failure.
type Handler struct {
	source *schema.Source
	cache  *cache.Cache
	cfg    Config

	mu      sync.Mutex
	state   string
	lastErr string
}

// New constructs a Handler for source, driving cache.
func New(source *schema.Source, c *cache.Cache, cfg Config) *Handler {
	return &Handler{source: source, cache: c, cfg: cfg.withDefaults(), state: "connecting"}
}

// State returns the handler's current state-machine label, for
// diagnostics: one of "connecting", "snapshotting", "live",
// "reconnecting", "fatal".
func (h *Handler) State() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastError returns the most recent session error, or "" if none.
func (h *Handler) LastError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Handler) setState(s string) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handler) setLastError(err error) {
	h.mu.Lock()
	if err == nil {
		h.lastErr = ""
	} else {
		h.lastErr = err.Error()
	}
	h.mu.Unlock()
}

// Start runs the handler for the lifetime of parent, reconnecting on
// every recoverable failure and returning only when parent stops or a
// permanent decode error makes the source Fatal (spec §4.2).
func (h *Handler) Start(parent *stopper.Context) {
	parent.Go(func() error {
		return h.run(parent)
	})
}

func (h *Handler) run(parent *stopper.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.cfg.ReconnectMinDelay
	b.MaxInterval = h.cfg.ReconnectMaxDelay
	b.MaxElapsedTime = 0 // retry forever; only parent.Stopping() ends the loop

	for {
		select {
		case <-parent.Stopping():
			return nil
		default:
		}

		err := h.session(parent)
		if err == nil || errors.Is(err, types.ErrCancelled) {
			return nil
		}
		h.setLastError(err)
		if isFatal(err) {
			h.setState("fatal")
			log.WithFields(log.Fields{"source": h.source.Name, "error": err}).
				Error("upstream protocol handler hit a fatal decode error; source disabled")
			return err
		}

		h.setState("reconnecting")
		delay := b.NextBackOff()
		log.WithFields(log.Fields{"source": h.source.Name, "error": err, "retry_in": delay}).
			Warn("upstream session failed; reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-parent.Stopping():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// fatalDecodeError marks a permanently unrecoverable wire-format
// mismatch (spec §4.2 "unrecognized wire format for a declared column
// type"), as distinct from a transient connection failure.
type fatalDecodeError struct{ error }

func isFatal(err error) bool {
	var fe *fatalDecodeError
	return errors.As(err, &fe)
}

// session runs one connect-subscribe-stream attempt to completion or
// failure. On entry it resets the cache (a new Snapshotting phase);
// every existing subscriber is resynced (spec §4.2 "Failure
// semantics").
func (h *Handler) session(parent *stopper.Context) error {
	h.setState("snapshotting")
	h.cache.Reset()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	conn, err := pgx.Connect(ctx, h.cfg.DSN)
	if err != nil {
		return errors.Wrap(err, "connect upstream")
	}
	defer conn.Close(context.Background())

	query := fmt.Sprintf("SUBSCRIBE (%s) WITH (PROGRESS)", h.cfg.Query)
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return errors.Wrap(err, "start subscribe")
	}
	defer rows.Close()

	cols := h.source.Columns
	preRow := func(k types.Key) (types.Row, bool) {
		return h.cache.Row(k)
	}
	co := newCoalescer(h.source, preRow)

	sawFrontier := false

	for {
		ok, err := h.nextRow(parent, cancel, rows)
		if err != nil {
			return err
		}
		if !ok {
			return rows.Err()
		}

		vals, err := rows.Values()
		if err != nil {
			return errors.Wrap(err, "read subscribe row")
		}
		if len(vals) < 3 {
			return &fatalDecodeError{errors.New("subscribe row has fewer than 3 leading columns")}
		}

		ts, ok := vals[0].(int64)
		if !ok {
			return &fatalDecodeError{errors.Errorf("mz_timestamp: unexpected wire type %T", vals[0])}
		}
		progressed, _ := vals[1].(bool)

		if progressed {
			co.Flush(func(f hlc.Time, e types.RowEvent) { h.cache.Apply(e) })
			if !sawFrontier {
				sawFrontier = true
				h.cache.MarkSnapshotComplete()
				h.setState("live")
			}
			continue
		}

		diff, ok := vals[2].(int64)
		if !ok {
			return &fatalDecodeError{errors.Errorf("mz_diff: unexpected wire type %T", vals[2])}
		}

		row, key, err := h.decodeRow(cols, vals[3:])
		if err != nil {
			return &fatalDecodeError{err}
		}

		co.Add(record{Timestamp: ts, Diff: int(diff), Row: row, Key: key},
			func(f hlc.Time, e types.RowEvent) { h.cache.Apply(e) })
	}
}

// nextRow advances rows, applying the configured idle liveness
// timeout: no record of any kind for IdleTimeout is treated as a dead
// session (spec §5). A fresh timer is armed each fetch cycle to cancel
// the session's own connection context on expiry; pgx observes that
// cancellation and unblocks the in-flight rows.Next() from within the
// same goroutine that owns the connection, so there is no separate
// goroutine reading rows concurrently with session's cleanup.
func (h *Handler) nextRow(parent *stopper.Context, cancel context.CancelFunc, rows pgx.Rows) (bool, error) {
	select {
	case <-parent.Stopping():
		return false, types.ErrCancelled
	default:
	}

	timer := time.AfterFunc(h.cfg.IdleTimeout, cancel)
	ok := rows.Next()
	timedOut := !timer.Stop()

	if ok {
		return true, nil
	}
	if timedOut {
		return false, errors.New("idle liveness timeout exceeded")
	}
	select {
	case <-parent.Stopping():
		return false, types.ErrCancelled
	default:
		return false, nil
	}
}

func (h *Handler) decodeRow(cols []schema.Column, vals []any) (types.Row, types.Key, error) {
	if len(vals) != len(cols) {
		return types.Row{}, "", errors.Errorf("expected %d columns, wire has %d", len(cols), len(vals))
	}

	values := make(map[ident.Ident]types.Value, len(cols))
	var keyRaw any
	for i, col := range cols {
		v, err := decodeValue(col.Type, vals[i])
		if err != nil {
			return types.Row{}, "", errors.Wrapf(err, "column %s", col.Name.Raw())
		}
		values[col.Name] = v
		if col.Name.Equal(h.source.PrimaryKey) {
			keyRaw = vals[i]
		}
	}

	row := types.NewRow(values)
	return row, types.Key(fmt.Sprintf("%v", keyRaw)), nil
}
