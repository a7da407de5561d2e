package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

func init() {
	logger.InitLogger(&config.Config{Environment: "test"})
}

type fakeRunRepo struct {
	run        *models.Run
	updates    []models.RunStatus
	failUpdate bool
}

func (f *fakeRunRepo) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	return run, nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*models.Run, error) {
	if f.run == nil {
		return nil, sql.ErrNoRows
	}
	return f.run, nil
}

func (f *fakeRunRepo) GetWithFlowAndPrompts(ctx context.Context, id string) (*models.Run, error) {
	if f.run == nil {
		return nil, sql.ErrNoRows
	}
	return f.run, nil
}

func (f *fakeRunRepo) GetWithPromptRuns(ctx context.Context, id string) (*models.Run, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRunRepo) ListByFlowID(ctx context.Context, flowID string) ([]models.Run, error) {
	return nil, nil
}

func (f *fakeRunRepo) List(ctx context.Context) ([]models.Run, error) { return nil, nil }

func (f *fakeRunRepo) UpdateByID(ctx context.Context, id string, run *models.Run) (*models.Run, error) {
	if f.failUpdate {
		return nil, errors.New("database unavailable")
	}
	f.updates = append(f.updates, run.Status)
	return run, nil
}

func (f *fakeRunRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (f *fakeRunRepo) MarkTimedOutBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRunRepo) WithTx(tx *bun.Tx) repository.IRunRepository { return f }
func (f *fakeRunRepo) WithDB(db *bun.DB) repository.IRunRepository { return f }

type fakePromptRunRepo struct {
	insertedPending []models.PromptRunStatus
	created         []*models.PromptRun
	updated         []*models.PromptRun
}

func (f *fakePromptRunRepo) Create(ctx context.Context, promptRun *models.PromptRun) (*models.PromptRun, error) {
	f.insertedPending = append(f.insertedPending, promptRun.Status)
	f.created = append(f.created, promptRun)
	return promptRun, nil
}

func (f *fakePromptRunRepo) GetByID(ctx context.Context, id string) (*models.PromptRun, error) {
	return nil, sql.ErrNoRows
}

func (f *fakePromptRunRepo) UpdateByID(ctx context.Context, id string, promptRun *models.PromptRun) (*models.PromptRun, error) {
	f.updated = append(f.updated, promptRun)
	return promptRun, nil
}

func (f *fakePromptRunRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (f *fakePromptRunRepo) ListByRunID(ctx context.Context, runID string) ([]models.PromptRun, error) {
	return nil, nil
}

func (f *fakePromptRunRepo) WithTx(tx *bun.Tx) repository.IPromptRunRepository { return f }
func (f *fakePromptRunRepo) WithDB(db *bun.DB) repository.IPromptRunRepository { return f }

type scriptedAdapter struct {
	results  []*providers.StepResult
	errs     []error
	requests []*providers.StepRequest
}

func (a *scriptedAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	i := len(a.requests)
	a.requests = append(a.requests, req)

	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	if i < len(a.results) {
		return a.results[i], nil
	}
	return &providers.StepResult{Response: map[string]any{"ok": true}}, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(ctx context.Context, run *models.Run, eventType string) {
	n.events = append(n.events, eventType)
}

func chatPrompt(flowID uuid.UUID, position int) *models.Prompt {
	return &models.Prompt{
		ID:               uuid.New(),
		FlowID:           flowID,
		Position:         position,
		EndpointType:     types.EndpointChat,
		SelectedProvider: types.ProviderOpenAI,
		SelectedModel:    "gpt-4o",
	}
}

func buildFixture(prompts []*models.Prompt, attachments []string) (*models.Run, *fakeRunRepo) {
	flow := models.NewFlow("Pipeline", "pipeline", "")
	for _, p := range prompts {
		p.FlowID = flow.ID
	}
	flow.Prompts = prompts

	run := models.NewRun(flow.ID)
	run.Flow = flow
	run.AttachmentURLs = attachments

	return run, &fakeRunRepo{run: run}
}

func newHarness(adapter providers.Adapter, runs *fakeRunRepo) (*Runner, *fakePromptRunRepo, *recordingNotifier) {
	registry := providers.NewRegistry()
	registry.Register(types.EndpointChat, types.ProviderOpenAI, adapter)

	promptRuns := &fakePromptRunRepo{}
	notifier := &recordingNotifier{}
	executor := NewStepExecutor(promptRuns, registry, nil, nil)

	return NewRunner(runs, executor, notifier), promptRuns, notifier
}

func TestExecuteRun_StepsRunInPositionOrder(t *testing.T) {
	third := chatPrompt(uuid.Nil, 30)
	first := chatPrompt(uuid.Nil, 10)
	second := chatPrompt(uuid.Nil, 20)
	run, runs := buildFixture([]*models.Prompt{third, first, second}, nil)

	adapter := &scriptedAdapter{}
	runner, promptRuns, _ := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, outcome.Status)

	require.Len(t, adapter.requests, 3)
	assert.Equal(t, first.ID, adapter.requests[0].Prompt.ID)
	assert.Equal(t, second.ID, adapter.requests[1].Prompt.ID)
	assert.Equal(t, third.ID, adapter.requests[2].Prompt.ID)

	require.Len(t, promptRuns.created, 3)
	assert.Equal(t, first.ID, promptRuns.created[0].PromptID)
	assert.Equal(t, second.ID, promptRuns.created[1].PromptID)
	assert.Equal(t, third.ID, promptRuns.created[2].PromptID)
}

func TestExecuteRun_EqualPositionsKeepInsertionOrder(t *testing.T) {
	a := chatPrompt(uuid.Nil, 5)
	b := chatPrompt(uuid.Nil, 5)
	c := chatPrompt(uuid.Nil, 5)
	run, runs := buildFixture([]*models.Prompt{a, b, c}, nil)

	adapter := &scriptedAdapter{}
	runner, _, _ := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	require.Len(t, adapter.requests, 3)
	assert.Equal(t, a.ID, adapter.requests[0].Prompt.ID)
	assert.Equal(t, b.ID, adapter.requests[1].Prompt.ID)
	assert.Equal(t, c.ID, adapter.requests[2].Prompt.ID)
}

func TestExecuteRun_OutputChainsIntoNextStep(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1), chatPrompt(uuid.Nil, 2)}, nil)

	adapter := &scriptedAdapter{results: []*providers.StepResult{
		{OutputURL: "https://stored/out.png", OutputType: types.OutputTypeImage},
		{Text: "done", OutputType: types.OutputTypeText},
	}}
	runner, _, _ := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	require.Len(t, adapter.requests, 2)
	assert.Empty(t, adapter.requests[0].InputImageURL)
	assert.Equal(t, "https://stored/out.png", adapter.requests[1].InputImageURL)
}

func TestExecuteRun_FirstAttachmentSeedsChain(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1)}, []string{"https://x/img.png", "https://x/extra.png"})

	adapter := &scriptedAdapter{}
	runner, _, _ := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	require.Len(t, adapter.requests, 1)
	assert.Equal(t, "https://x/img.png", adapter.requests[0].InputImageURL)
	assert.Equal(t, []string{"https://x/img.png", "https://x/extra.png"}, adapter.requests[0].AttachmentURLs)
}

func TestExecuteRun_ChainReplacesOnlyFirstAttachmentSlot(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1), chatPrompt(uuid.Nil, 2)},
		[]string{"https://x/a0.png", "https://x/a1.png", "https://x/a2.png"})

	adapter := &scriptedAdapter{results: []*providers.StepResult{
		{OutputURL: "https://stored/o1.png", OutputType: types.OutputTypeImage},
	}}
	runner, _, _ := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	require.Len(t, adapter.requests, 2)
	assert.Equal(t, []string{"https://stored/o1.png", "https://x/a1.png", "https://x/a2.png"}, adapter.requests[1].AttachmentURLs)
}

func TestExecuteRun_TerminalRunShortCircuits(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1)}, nil)
	run.Status = models.RunStatusCompleted
	run.Data = &models.RunData{Text: "earlier result"}

	adapter := &scriptedAdapter{}
	runner, promptRuns, notifier := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.True(t, outcome.AlreadyProcessed)
	assert.Equal(t, models.RunStatusCompleted, outcome.Status)
	assert.Equal(t, "earlier result", outcome.Data.Text)
	assert.Empty(t, adapter.requests)
	assert.Empty(t, promptRuns.created)
	assert.Empty(t, notifier.events)
	assert.Empty(t, runs.updates)
}

func TestExecuteRun_FailFastAbortsRemainingSteps(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1), chatPrompt(uuid.Nil, 2), chatPrompt(uuid.Nil, 3)}, nil)

	adapter := &scriptedAdapter{errs: []error{nil, errors.New("upstream rejected the prompt")}}
	runner, promptRuns, notifier := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, outcome.Status)
	assert.Equal(t, "upstream rejected the prompt", outcome.Data.Error)

	// Two attempts recorded, the third step never started.
	require.Len(t, promptRuns.created, 2)
	require.Len(t, promptRuns.updated, 2)
	assert.Equal(t, models.PromptRunStatusCompleted, promptRuns.updated[0].Status)
	assert.Equal(t, models.PromptRunStatusFailed, promptRuns.updated[1].Status)
	assert.Equal(t, "upstream rejected the prompt", promptRuns.updated[1].Response["error"])
	assert.Len(t, adapter.requests, 2)

	assert.Equal(t, []string{types.EventRunFailed}, notifier.events)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.False(t, run.CompletedAt.IsZero())
}

func TestExecuteRun_EmptyFlowFails(t *testing.T) {
	run, runs := buildFixture(nil, nil)

	adapter := &scriptedAdapter{}
	runner, promptRuns, notifier := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, outcome.Status)
	assert.Equal(t, "flow has no prompts", outcome.Data.Error)
	assert.Empty(t, promptRuns.created)
	assert.Equal(t, []string{types.EventRunFailed}, notifier.events)
}

func TestExecuteRun_CompletionRecordsDataAndNotifies(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1)}, []string{"https://x/img.png"})

	adapter := &scriptedAdapter{results: []*providers.StepResult{
		{OutputURL: "https://stored/out.png", OutputType: types.OutputTypeImage},
	}}
	runner, _, notifier := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, outcome.Status)
	assert.Equal(t, "https://stored/out.png", outcome.Data.ImageURL)
	assert.Equal(t, []string{types.EventRunCompleted}, notifier.events)
	assert.False(t, run.CompletedAt.IsZero())
	assert.False(t, run.StartedAt.IsZero())
	assert.Equal(t, models.RunStatusCompleted, runs.updates[len(runs.updates)-1])
}

func TestExecuteRun_LastProducingStepWins(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1), chatPrompt(uuid.Nil, 2)}, nil)

	adapter := &scriptedAdapter{results: []*providers.StepResult{
		{Text: "draft caption", OutputType: types.OutputTypeText},
		{OutputURL: "https://stored/final.mp4", OutputType: types.OutputTypeVideo},
	}}
	runner, _, _ := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "https://stored/final.mp4", outcome.Data.VideoURL)
	assert.Empty(t, outcome.Data.Text)
	assert.Empty(t, outcome.Data.ImageURL)
}

func TestExecuteRun_NonProducingStepKeepsAccumulator(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1), chatPrompt(uuid.Nil, 2)}, nil)

	adapter := &scriptedAdapter{results: []*providers.StepResult{
		{OutputURL: "https://stored/out.png", OutputType: types.OutputTypeImage},
		{Response: map[string]any{"ok": true}},
	}}
	runner, _, _ := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "https://stored/out.png", outcome.Data.ImageURL)
}

func TestExecuteRun_UnknownProviderComboFailsRun(t *testing.T) {
	prompt := chatPrompt(uuid.Nil, 1)
	prompt.EndpointType = types.EndpointVideoToVideo
	prompt.SelectedProvider = types.ProviderLuma
	run, runs := buildFixture([]*models.Prompt{prompt}, nil)

	adapter := &scriptedAdapter{}
	runner, promptRuns, notifier := newHarness(adapter, runs)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Data.Error, "unsupported combination")
	assert.Empty(t, adapter.requests)

	// The attempt is still recorded: pending insert precedes dispatch.
	require.Len(t, promptRuns.created, 1)
	require.Len(t, promptRuns.updated, 1)
	assert.Equal(t, models.PromptRunStatusFailed, promptRuns.updated[0].Status)
	assert.Equal(t, []string{types.EventRunFailed}, notifier.events)
}

func TestExecuteRun_StateWriteFailureSurfaces(t *testing.T) {
	run, runs := buildFixture([]*models.Prompt{chatPrompt(uuid.Nil, 1)}, nil)
	runs.failUpdate = true

	adapter := &scriptedAdapter{}
	runner, _, notifier := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.Error(t, err)

	var write *StateWriteError
	assert.True(t, errors.As(err, &write))
	assert.Empty(t, notifier.events)
}

func TestExecuteRun_MissingRunReturnsError(t *testing.T) {
	runs := &fakeRunRepo{}
	runner, _, _ := newHarness(&scriptedAdapter{}, runs)

	_, err := runner.ExecuteRun(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExecuteStep_RendersTemplatesOnDetachedCopy(t *testing.T) {
	prompt := chatPrompt(uuid.Nil, 1)
	prompt.SystemPrompt = "You write about {{ topic }}."
	prompt.BackgroundPrompt = "A scene of {{ topic }} at {{ time }}"
	run, runs := buildFixture([]*models.Prompt{prompt}, nil)
	run.Variables = map[string]any{"topic": "lighthouses", "time": "dusk"}

	adapter := &scriptedAdapter{}
	runner, _, _ := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	require.Len(t, adapter.requests, 1)
	rendered := adapter.requests[0].Prompt
	assert.Equal(t, "You write about lighthouses.", rendered.SystemPrompt)
	assert.Equal(t, "A scene of lighthouses at dusk", rendered.BackgroundPrompt)

	// The persisted prompt keeps its raw templates.
	assert.Equal(t, "You write about {{ topic }}.", prompt.SystemPrompt)
	assert.Equal(t, "A scene of {{ topic }} at {{ time }}", prompt.BackgroundPrompt)
}

func TestExecuteStep_SnapshotsProviderAndTokens(t *testing.T) {
	prompt := chatPrompt(uuid.Nil, 1)
	run, runs := buildFixture([]*models.Prompt{prompt}, []string{"https://x/a.png"})
	run.InputMediaIDs = []string{"img_ab12cd34"}

	adapter := &scriptedAdapter{results: []*providers.StepResult{{
		Response:   map[string]any{"content": "hi"},
		Text:       "hi",
		OutputType: types.OutputTypeText,
		Usage:      &providers.TokenUsage{Input: 11, Output: 5, Total: 16},
	}}}
	runner, promptRuns, _ := newHarness(adapter, runs)

	_, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	require.Len(t, promptRuns.insertedPending, 1)
	assert.Equal(t, models.PromptRunStatusPending, promptRuns.insertedPending[0])

	record := promptRuns.updated[0]
	assert.Equal(t, types.ProviderOpenAI, record.SelectedProvider)
	assert.Equal(t, "gpt-4o", record.Model)
	assert.Equal(t, []string{"img_ab12cd34"}, record.InputMediaIDs)
	assert.Equal(t, []string{"https://x/a.png"}, record.SourceAttachmentURLs)
	require.NotNil(t, record.InputTokens)
	assert.Equal(t, 11, *record.InputTokens)
	assert.Equal(t, 5, *record.OutputTokens)
	assert.Equal(t, 16, *record.TotalTokens)
	assert.False(t, record.StartedAt.IsZero())
	assert.False(t, record.CompletedAt.IsZero())
}

type gatedChecker struct {
	blocked string
}

func (g *gatedChecker) Check(ctx context.Context, text string) error {
	if g.blocked != "" && text != "" && g.blocked == text {
		return fmt.Errorf("prompt rejected by safety filter")
	}
	return nil
}

func TestExecuteStep_SafetyGateBlocksDispatch(t *testing.T) {
	prompt := chatPrompt(uuid.Nil, 1)
	prompt.SystemPrompt = "{{ bad }}"
	run, runs := buildFixture([]*models.Prompt{prompt}, nil)
	run.Variables = map[string]any{"bad": "forbidden content"}

	registry := providers.NewRegistry()
	adapter := &scriptedAdapter{}
	registry.Register(types.EndpointChat, types.ProviderOpenAI, adapter)

	promptRuns := &fakePromptRunRepo{}
	notifier := &recordingNotifier{}
	executor := NewStepExecutor(promptRuns, registry, nil, &gatedChecker{blocked: "forbidden content"})
	runner := NewRunner(runs, executor, notifier)

	outcome, err := runner.ExecuteRun(context.Background(), run.ID.String())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Data.Error, "safety filter")
	assert.Empty(t, adapter.requests)
}
