package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbreakfast/conductor/internal/types"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Execute(ctx context.Context, req *StepRequest) (*StepResult, error) {
	return &StepResult{Text: s.name}, nil
}

func TestRegistry_ResolveRegistered(t *testing.T) {
	reg := NewRegistry()
	chat := &stubAdapter{name: "chat"}
	reg.Register(types.EndpointChat, types.ProviderOpenAI, chat)

	adapter, err := reg.Resolve(types.EndpointChat, types.ProviderOpenAI)
	require.NoError(t, err)
	assert.Same(t, chat, adapter)
}

func TestRegistry_ResolveUnknownPair(t *testing.T) {
	reg := NewRegistry()
	reg.Register(types.EndpointChat, types.ProviderOpenAI, &stubAdapter{name: "chat"})

	_, err := reg.Resolve(types.EndpointImageToVideo, types.ProviderOpenAI)
	require.Error(t, err)

	var unsupported *UnsupportedStepError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, types.EndpointImageToVideo, unsupported.EndpointType)
	assert.Equal(t, types.ProviderOpenAI, unsupported.Provider)
}

func TestRegistry_SameEndpointDifferentProviders(t *testing.T) {
	reg := NewRegistry()
	luma := &stubAdapter{name: "luma"}
	runway := &stubAdapter{name: "runway"}
	reg.Register(types.EndpointImageToVideo, types.ProviderLuma, luma)
	reg.Register(types.EndpointImageToVideo, types.ProviderRunway, runway)

	adapter, err := reg.Resolve(types.EndpointImageToVideo, types.ProviderRunway)
	require.NoError(t, err)
	assert.Same(t, runway, adapter)

	adapter, err = reg.Resolve(types.EndpointImageToVideo, types.ProviderLuma)
	require.NoError(t, err)
	assert.Same(t, luma, adapter)
}

func TestAwait_ReturnsOnceDone(t *testing.T) {
	attempts := 0
	result, err := Await(context.Background(), PollConfig{Interval: time.Millisecond, MaxAttempts: 10}, func(ctx context.Context) (string, bool, error) {
		attempts++
		return "ready", attempts >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", result)
	assert.Equal(t, 3, attempts)
}

func TestAwait_TimesOutAfterMaxAttempts(t *testing.T) {
	_, err := Await(context.Background(), PollConfig{Interval: time.Millisecond, MaxAttempts: 4}, func(ctx context.Context) (string, bool, error) {
		return "", false, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
}

func TestAwait_PropagatesPollError(t *testing.T) {
	boom := errors.New("provider exploded")
	_, err := Await(context.Background(), PollConfig{Interval: time.Millisecond, MaxAttempts: 4}, func(ctx context.Context) (string, bool, error) {
		return "", false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestAwait_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Await(ctx, PollConfig{Interval: 50 * time.Millisecond, MaxAttempts: 10}, func(ctx context.Context) (string, bool, error) {
		return "", false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
