// Package stopper provides a small structured-concurrency helper: a
// context that tracks a group of goroutines and supports a graceful,
// bounded-grace-period shutdown in addition to hard cancellation.
package stopper

import (
	"context"
	"sync"
	"time"
)

// Context wraps a context.Context with goroutine tracking and an
// orderly-shutdown signal that is distinct from hard cancellation.
type Context struct {
	context.Context

	cancel   context.CancelFunc
	stopping chan struct{}
	once     sync.Once

	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

// WithContext creates a new stopper.Context bound to a parent.
func WithContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{
		Context:  ctx,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
}

// Stopping returns a channel that is closed once a graceful Stop has
// been requested. Long-running loops should select on this in addition
// to Done() so they can exit promptly without being hard-canceled.
func (c *Context) Stopping() <-chan struct{} {
	return c.stopping
}

// Go runs fn in a tracked goroutine. If fn returns a non-nil error, it
// is recorded and the context is canceled so sibling goroutines unwind.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = err
			}
			c.mu.Unlock()
			c.cancel()
		}
	}()
}

// Stop requests graceful shutdown: Stopping() is closed immediately,
// and if tracked goroutines have not exited within grace, the context
// is hard-canceled. Stop blocks until all tracked goroutines exit.
func (c *Context) Stop(grace time.Duration) error {
	c.once.Do(func() { close(c.stopping) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	if grace > 0 {
		select {
		case <-done:
		case <-time.After(grace):
			c.cancel()
			<-done
		}
	} else {
		<-done
	}

	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
