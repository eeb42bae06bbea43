package webhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	posts int
}

func (s *countingSink) Post(ctx context.Context, event Event) error {
	s.posts++
	return nil
}

func TestWithChaosZeroProbDelegatesAlways(t *testing.T) {
	delegate := &countingSink{}
	sink := WithChaos(delegate, 0)
	require.Same(t, delegate, sink)
}

func TestWithChaosAlwaysFails(t *testing.T) {
	delegate := &countingSink{}
	sink := WithChaos(delegate, 1)

	err := sink.Post(context.Background(), Event{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChaos)
	assert.Equal(t, 0, delegate.posts, "delegate must not be called when chaos fires")
}

func TestWithChaosNeverFires(t *testing.T) {
	delegate := &countingSink{}
	sink := WithChaos(delegate, 0)

	for i := 0; i < 20; i++ {
		require.NoError(t, sink.Post(context.Background(), Event{}))
	}
	assert.Equal(t, 20, delegate.posts)
}
