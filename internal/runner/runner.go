package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

// Notifier posts run lifecycle events. Delivery outcome never reaches
// the runner.
type Notifier interface {
	Notify(ctx context.Context, run *models.Run, eventType string)
}

// RunOutcome is what ExecuteRun reports back to its caller.
type RunOutcome struct {
	Status           models.RunStatus
	Data             *models.RunData
	AlreadyProcessed bool
}

// Runner drives one run through its flow's prompts in position order,
// chaining each step's output into the next step's primary input.
type Runner struct {
	runs     repository.IRunRepository
	executor *StepExecutor
	notifier Notifier
}

func NewRunner(runs repository.IRunRepository, executor *StepExecutor, notifier Notifier) *Runner {
	return &Runner{runs: runs, executor: executor, notifier: notifier}
}

// ExecuteRun executes the run to a terminal state. Invoking it on an
// already-terminal run is a no-op returning AlreadyProcessed. Step
// failures fail the run and are absorbed; state write failures are
// returned.
func (r *Runner) ExecuteRun(ctx context.Context, runID string) (*RunOutcome, error) {
	run, err := r.runs.GetWithFlowAndPrompts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	if run.Status.IsTerminal() {
		return &RunOutcome{Status: run.Status, Data: run.Data, AlreadyProcessed: true}, nil
	}

	if run.Flow == nil || len(run.Flow.Prompts) == 0 {
		if err := r.failRun(ctx, run, "flow has no prompts"); err != nil {
			return nil, err
		}
		return &RunOutcome{Status: models.RunStatusFailed, Data: run.Data}, nil
	}

	run.StartedAt = bun.NullTime{Time: time.Now()}
	run.UpdatedAt = bun.NullTime{Time: time.Now()}
	if _, err := r.runs.UpdateByID(ctx, run.ID.String(), run); err != nil {
		return nil, &StateWriteError{Op: "failed to record run start", Err: err}
	}

	prompts := make([]*models.Prompt, len(run.Flow.Prompts))
	copy(prompts, run.Flow.Prompts)
	sort.SliceStable(prompts, func(i, j int) bool { return prompts[i].Position < prompts[j].Position })

	currentInput := ""
	if len(run.AttachmentURLs) > 0 {
		currentInput = run.AttachmentURLs[0]
	}

	var accumulator models.RunData

	for _, prompt := range prompts {
		result, err := r.executor.ExecuteStep(ctx, run, prompt, currentInput, effectiveAttachments(currentInput, run.AttachmentURLs))
		if err != nil {
			var write *StateWriteError
			if errors.As(err, &write) {
				return nil, err
			}

			if failErr := r.failRun(ctx, run, err.Error()); failErr != nil {
				return nil, failErr
			}
			return &RunOutcome{Status: models.RunStatusFailed, Data: run.Data}, nil
		}

		if result.OutputURL != "" {
			currentInput = result.OutputURL
		}
		recordOutput(&accumulator, result)
	}

	now := time.Now()
	run.Status = models.RunStatusCompleted
	run.Data = &accumulator
	run.CompletedAt = bun.NullTime{Time: now}
	run.UpdatedAt = bun.NullTime{Time: now}
	if _, err := r.runs.UpdateByID(ctx, run.ID.String(), run); err != nil {
		return nil, &StateWriteError{Op: "failed to record run completion", Err: err}
	}

	r.notifier.Notify(ctx, run, types.EventRunCompleted)

	return &RunOutcome{Status: models.RunStatusCompleted, Data: run.Data}, nil
}

func (r *Runner) failRun(ctx context.Context, run *models.Run, message string) error {
	now := time.Now()
	run.Status = models.RunStatusFailed
	run.Data = &models.RunData{Error: message}
	run.CompletedAt = bun.NullTime{Time: now}
	run.UpdatedAt = bun.NullTime{Time: now}

	if _, err := r.runs.UpdateByID(ctx, run.ID.String(), run); err != nil {
		return &StateWriteError{Op: "failed to record run failure", Err: err}
	}

	r.notifier.Notify(ctx, run, types.EventRunFailed)
	return nil
}

// effectiveAttachments is the attachment list a step sees: the chain
// value occupies slot 0 and the run's remaining original attachments
// follow. Only slot 0 advances with the chain.
func effectiveAttachments(currentInput string, original []string) []string {
	attachments := make([]string, 0, len(original)+1)
	if currentInput != "" {
		attachments = append(attachments, currentInput)
	}
	if len(original) > 1 {
		attachments = append(attachments, original[1:]...)
	}
	if len(attachments) == 0 {
		return nil
	}
	return attachments
}

// recordOutput replaces the accumulator with the step's single output.
// The last producing step wins.
func recordOutput(data *models.RunData, result *providers.StepResult) {
	switch {
	case result.OutputType == types.OutputTypeImage && result.OutputURL != "":
		*data = models.RunData{ImageURL: result.OutputURL}
	case result.OutputType == types.OutputTypeVideo && result.OutputURL != "":
		*data = models.RunData{VideoURL: result.OutputURL}
	case result.OutputType == types.OutputTypeAudio && result.OutputURL != "":
		*data = models.RunData{AudioURL: result.OutputURL}
	case result.Text != "":
		*data = models.RunData{Text: result.Text}
	}
}
