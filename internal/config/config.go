// Package config contains the user-visible, pflag-bound configuration
// for running tycostream. Per-source settings (DSN, queries, schema)
// are loaded by a YAML/CLI front end that is out of scope for the core
// (spec §1, §6); this package only defines the ambient process-level
// settings every source composes against.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the ambient, process-wide configuration.
type Config struct {
	BindAddr string

	// DefaultQueueCapacity is the bounded output-queue size applied to
	// every subscriber or trigger whose request does not set its own
	// Capacity (spec §4.6, recommended default 1024). It applies to all
	// sources alike; SourceConfig.QueueCapacity is not read.
	DefaultQueueCapacity int

	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	IdleTimeout       time.Duration

	WebhookMaxAttempts int
	WebhookMaxElapsed  time.Duration

	// ShutdownGrace bounds how long Stop waits for in-flight
	// subscribers and the upstream handler to unwind before hard
	// canceling (spec §9).
	ShutdownGrace time.Duration

	MetricsAddr string
}

// Bind registers flags on flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.BindAddr, "bindAddr", ":7100",
		"the network address the subscription API listens on")
	flags.IntVar(&c.DefaultQueueCapacity, "queueCapacity", 1024,
		"default bounded output-queue capacity per subscriber or trigger")
	flags.DurationVar(&c.ReconnectMinDelay, "reconnectMinDelay", 200*time.Millisecond,
		"minimum backoff delay between upstream reconnect attempts")
	flags.DurationVar(&c.ReconnectMaxDelay, "reconnectMaxDelay", 30*time.Second,
		"maximum backoff delay between upstream reconnect attempts")
	flags.DurationVar(&c.IdleTimeout, "idleTimeout", 60*time.Second,
		"maximum time with no upstream record before forcing a reconnect")
	flags.IntVar(&c.WebhookMaxAttempts, "webhookMaxAttempts", 5,
		"maximum delivery attempts per trigger webhook event")
	flags.DurationVar(&c.WebhookMaxElapsed, "webhookMaxElapsed", 30*time.Second,
		"maximum total retry time per trigger webhook event")
	flags.DurationVar(&c.ShutdownGrace, "shutdownGrace", 10*time.Second,
		"grace period for in-flight work to unwind during shutdown")
	flags.StringVar(&c.MetricsAddr, "metricsAddr", ":9100",
		"the network address the Prometheus metrics endpoint listens on")
}

// Preflight validates the bound configuration.
func (c *Config) Preflight() error {
	if c.BindAddr == "" {
		return errors.New("bindAddr unset")
	}
	if c.DefaultQueueCapacity <= 0 {
		return errors.New("queueCapacity must be positive")
	}
	if c.ReconnectMinDelay <= 0 || c.ReconnectMaxDelay <= 0 {
		return errors.New("reconnectMinDelay and reconnectMaxDelay must be positive")
	}
	if c.ReconnectMinDelay > c.ReconnectMaxDelay {
		return errors.New("reconnectMinDelay must not exceed reconnectMaxDelay")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idleTimeout must be positive")
	}
	if c.WebhookMaxAttempts <= 0 {
		return errors.New("webhookMaxAttempts must be positive")
	}
	if c.WebhookMaxElapsed <= 0 {
		return errors.New("webhookMaxElapsed must be positive")
	}
	return nil
}

// SourceConfig is one configured upstream view, the per-source subset
// of settings a YAML loader (out of scope) would populate.
type SourceConfig struct {
	Name  string
	DSN   string
	Query string

	// QueueCapacity is carried for a loader to populate, but app.New does
	// not read it: every source uses Config.DefaultQueueCapacity.
	QueueCapacity int
}
