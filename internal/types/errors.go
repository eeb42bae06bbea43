package types

import (
	"errors"
	"fmt"
)

// SchemaError reports a fatal, startup-only schema registry failure.
type SchemaError struct {
	Source string
	Column string // optional
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error in %s.%s: %s", e.Source, e.Column, e.Reason)
	}
	return fmt.Sprintf("schema error in %s: %s", e.Source, e.Reason)
}

// IsSchemaError reports whether err is a *SchemaError.
func IsSchemaError(err error) (se *SchemaError, ok bool) {
	return se, errors.As(err, &se)
}

// UpstreamResyncError is delivered to every subscriber of a source
// whose upstream handler lost and rebuilt its cache. Subscribers must
// re-subscribe to recover; re-subscription yields a fresh snapshot.
type UpstreamResyncError struct {
	Source string
}

func (e *UpstreamResyncError) Error() string {
	return fmt.Sprintf("source %s was resynced upstream; re-subscribe for a fresh snapshot", e.Source)
}

// IsUpstreamResync reports whether err is an *UpstreamResyncError.
func IsUpstreamResync(err error) (re *UpstreamResyncError, ok bool) {
	return re, errors.As(err, &re)
}

// SubscriberLaggedError terminates a subscription whose output queue
// overflowed because the consumer could not keep up.
type SubscriberLaggedError struct {
	Source string
}

func (e *SubscriberLaggedError) Error() string {
	return fmt.Sprintf("subscriber to %s lagged and was disconnected", e.Source)
}

// IsSubscriberLagged reports whether err is a *SubscriberLaggedError.
func IsSubscriberLagged(err error) (le *SubscriberLaggedError, ok bool) {
	return le, errors.As(err, &le)
}

// SourceShutdownError describes a source that has hit an unrecoverable
// upstream error or is being torn down. No component of this module
// delivers it: a source that goes Fatal leaves its subscribers attached,
// and App.Shutdown closes pipelines without an error.
type SourceShutdownError struct {
	Source string
	Reason string
}

func (e *SourceShutdownError) Error() string {
	return fmt.Sprintf("source %s shut down: %s", e.Source, e.Reason)
}

// IsSourceShutdown reports whether err is a *SourceShutdownError.
func IsSourceShutdown(err error) (se *SourceShutdownError, ok bool) {
	return se, errors.As(err, &se)
}

// TriggerOverflowError disposes of a trigger whose webhook sink could
// not keep up with fired/cleared events; the source itself is
// unaffected.
type TriggerOverflowError struct {
	Trigger string
}

func (e *TriggerOverflowError) Error() string {
	return fmt.Sprintf("trigger %s overflowed its outbound queue and was disposed", e.Trigger)
}

// IsTriggerOverflow reports whether err is a *TriggerOverflowError.
func IsTriggerOverflow(err error) (te *TriggerOverflowError, ok bool) {
	return te, errors.As(err, &te)
}

// ErrCancelled is returned on the normal cancellation path; it is not
// logged as an error.
var ErrCancelled = errors.New("cancelled")
