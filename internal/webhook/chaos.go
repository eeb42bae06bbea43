package webhook

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
)

// ErrChaos is the error injected by ChaosSink.
var ErrChaos = errors.New("chaos")

// ChaosSink wraps a Sink, injecting a synthetic delivery failure with
// probability prob before delegating. It exists for exercising the
// Trigger Engine's overflow/disposal path (spec §4.5) under simulated
// persistent webhook failure, without standing up a real flaky HTTP
// endpoint.
type ChaosSink struct {
	Delegate Sink
	Prob     float32
}

// WithChaos wraps delegate in a ChaosSink; delegate is returned
// unwrapped if prob <= 0.
func WithChaos(delegate Sink, prob float32) Sink {
	if prob <= 0 {
		return delegate
	}
	return &ChaosSink{Delegate: delegate, Prob: prob}
}

func (s *ChaosSink) Post(ctx context.Context, event Event) error {
	if rand.Float32() < s.Prob {
		return errors.WithMessage(ErrChaos, "injected webhook failure")
	}
	return s.Delegate.Post(ctx, event)
}
