package runner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/mq"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

type signalingNotifier struct {
	events chan string
}

func (n *signalingNotifier) Notify(ctx context.Context, run *models.Run, eventType string) {
	select {
	case n.events <- eventType:
	default:
	}
}

func TestProcessor_EnqueueRoundTrip(t *testing.T) {
	queue, err := mq.NewInMemoryMQ(16)
	require.NoError(t, err)

	processor := NewProcessor(queue, nil, nil, nil)
	runID := uuid.NewString()
	require.NoError(t, processor.Enqueue(context.Background(), runID))

	message, err := queue.Receive(context.Background(), config.DefaultRunsTopic)
	require.NoError(t, err)

	data, err := queue.GetMessageData(message)
	require.NoError(t, err)

	var task types.RunTask
	require.NoError(t, msgpack.Unmarshal(data, &task))
	assert.Equal(t, runID, task.RunID)
}

func TestProcessor_ExecutesEnqueuedRun(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1)}, nil)

	adapter := &scriptedAdapter{results: []*providers.StepResult{
		{Text: "hello", OutputType: types.OutputTypeText},
	}}
	registry := providers.NewRegistry()
	registry.Register(types.EndpointChat, types.ProviderOpenAI, adapter)

	notifier := &signalingNotifier{events: make(chan string, 1)}
	executor := NewStepExecutor(&fakePromptRunRepo{}, registry, nil, nil)
	runner := NewRunner(runs, executor, notifier)

	queue, err := mq.NewInMemoryMQ(16)
	require.NoError(t, err)
	processor := NewProcessor(queue, runner, runs, &config.RunnerConfig{MaxConcurrentRuns: 2})

	ctx, cancel := context.WithCancel(context.Background())
	startErr := make(chan error, 1)
	go func() { startErr <- processor.Start(ctx) }()

	require.NoError(t, processor.Enqueue(ctx, run.ID.String()))

	select {
	case event := <-notifier.events:
		assert.Equal(t, types.EventRunCompleted, event)
	case <-time.After(5 * time.Second):
		t.Fatal("run never completed")
	}

	cancel()
	require.NoError(t, <-startErr)
	processor.Stop()

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, "hello", run.Data.Text)
}

func TestProcessor_MalformedTaskSkipped(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1)}, nil)

	registry := providers.NewRegistry()
	registry.Register(types.EndpointChat, types.ProviderOpenAI, &scriptedAdapter{})

	notifier := &signalingNotifier{events: make(chan string, 1)}
	executor := NewStepExecutor(&fakePromptRunRepo{}, registry, nil, nil)
	runner := NewRunner(runs, executor, notifier)

	queue, err := mq.NewInMemoryMQ(16)
	require.NoError(t, err)
	processor := NewProcessor(queue, runner, runs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	startErr := make(chan error, 1)
	go func() { startErr <- processor.Start(ctx) }()

	// A payload that does not decode must be dropped, not wedge the loop.
	require.NoError(t, queue.Publish(ctx, config.DefaultRunsTopic, []byte{0xc1}))
	require.NoError(t, processor.Enqueue(ctx, run.ID.String()))

	select {
	case event := <-notifier.events:
		assert.Equal(t, types.EventRunCompleted, event)
	case <-time.After(5 * time.Second):
		t.Fatal("run never completed")
	}

	cancel()
	require.NoError(t, <-startErr)
	processor.Stop()
}
