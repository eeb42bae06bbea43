// Package webhook implements the Trigger Engine's delivery sink (spec
// §4.5): an at-least-once, bounded-retry HTTP poster. Retries use
// exponential backoff with jitter, matching the reconnect idiom the
// upstream protocol handler also uses.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tycoworks/tycostream/internal/types"
)

// EventType distinguishes a trigger's two possible notifications.
type EventType string

const (
	EventFire  EventType = "fire"
	EventClear EventType = "clear"
)

// Event is the payload posted to a trigger's webhook URL.
type Event struct {
	EventType   EventType      `json:"event_type"`
	TriggerName string         `json:"trigger_name"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// NewEvent builds an Event from a fired/cleared row.
func NewEvent(kind EventType, triggerName string, row types.Row) Event {
	return Event{
		EventType:   kind,
		TriggerName: triggerName,
		Timestamp:   time.Now(),
		Data:        types.RowToMap(row),
	}
}

// Sink delivers a single Event, retrying internally as configured; a
// returned error means every retry was exhausted.
type Sink interface {
	Post(ctx context.Context, event Event) error
}

// Config parameterizes an HTTPSink.
type Config struct {
	URL string
	// MaxAttempts bounds delivery attempts for one Event; 0 means
	// use a sensible default (5).
	MaxAttempts int
	// MaxElapsed bounds total retry wall-clock time per Event; 0 means
	// use a sensible default (30s).
	MaxElapsed time.Duration
	Client     *http.Client
}

// HTTPSink posts Events as JSON via HTTP POST, one request per
// delivery attempt. Per spec §4.5, triggers are delivered
// independently of one another but a single trigger's events are
// posted in the order they were decided, since Post is called
// serially by the owning Trigger's goroutine.
type HTTPSink struct {
	cfg Config
}

// NewHTTPSink constructs an HTTPSink from cfg, filling in defaults.
func NewHTTPSink(cfg Config) *HTTPSink {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{cfg: cfg}
}

func (s *HTTPSink) Post(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal webhook event")
	}

	policy := backoff.WithContext(s.retryPolicy(), ctx)
	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "build webhook request"))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.cfg.Client.Do(req)
		if err != nil {
			log.WithFields(log.Fields{
				"trigger": event.TriggerName,
				"attempt": attempt,
				"error":   err,
			}).Warn("webhook delivery attempt failed")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		// spec §6: non-2xx responses retry up to the configured bound,
		// with no special-casing by status code.
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}

	if err := backoff.Retry(op, policy); err != nil {
		return errors.Wrapf(err, "webhook delivery to %s exhausted retries", s.cfg.URL)
	}
	return nil
}

func (s *HTTPSink) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = s.cfg.MaxElapsed
	return backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1))
}
