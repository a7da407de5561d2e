// Package runner executes runs: the step executor records and
// dispatches individual prompts, the runner chains them, and the
// processor feeds queued runs onto a worker pool.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/media"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/template"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

// StateWriteError marks a failure to persist execution state, as
// opposed to a step's own failure. State write failures abort the
// orchestrator instead of being absorbed into the run.
type StateWriteError struct {
	Op  string
	Err error
}

func (e *StateWriteError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StateWriteError) Unwrap() error { return e.Err }

// SafetyChecker screens rendered prompt text before dispatch.
type SafetyChecker interface {
	Check(ctx context.Context, text string) error
}

// StepExecutor executes exactly one prompt against the current
// chaining state and records the attempt as a PromptRun row.
type StepExecutor struct {
	promptRuns repository.IPromptRunRepository
	registry   *providers.Registry
	uploader   *media.Uploader
	safety     SafetyChecker
}

func NewStepExecutor(promptRuns repository.IPromptRunRepository, registry *providers.Registry, uploader *media.Uploader, safety SafetyChecker) *StepExecutor {
	return &StepExecutor{
		promptRuns: promptRuns,
		registry:   registry,
		uploader:   uploader,
		safety:     safety,
	}
}

// ExecuteStep records a pending PromptRun, dispatches the prompt to
// its adapter and finalizes the row exactly once. The pending insert
// is durable before the external call goes out, so a crash mid-call
// leaves visible evidence. Step failures are recorded, then returned,
// never swallowed.
func (e *StepExecutor) ExecuteStep(ctx context.Context, run *models.Run, prompt *models.Prompt, inputImageURL string, attachments []string) (*providers.StepResult, error) {
	record := models.NewPromptRun(run.ID, prompt.ID)
	record.SelectedProvider = prompt.SelectedProvider
	record.Model = prompt.SelectedModel
	record.InputMediaIDs = run.InputMediaIDs
	record.SourceAttachmentURLs = attachments
	record.StartedAt = bun.NullTime{Time: time.Now()}

	record, err := e.promptRuns.Create(ctx, record)
	if err != nil {
		return nil, &StateWriteError{Op: "failed to record step start", Err: err}
	}

	result, execErr := e.dispatch(ctx, run, prompt, inputImageURL, attachments)

	now := time.Now()
	record.CompletedAt = bun.NullTime{Time: now}
	record.UpdatedAt = bun.NullTime{Time: now}

	if execErr != nil {
		record.Status = models.PromptRunStatusFailed
		record.Response = map[string]any{"error": execErr.Error()}
		if _, err := e.promptRuns.UpdateByID(ctx, record.ID.String(), record); err != nil {
			logger.Error("Failed to record step failure", record.ID, err)
		}
		return nil, execErr
	}

	record.Status = models.PromptRunStatusCompleted
	record.Response = result.Response
	record.AttachmentURLs = resultAttachments(result)
	record.OutputMediaIDs = resultMediaIDs(result)
	if result.Usage != nil {
		in, out, total := result.Usage.Input, result.Usage.Output, result.Usage.Total
		record.InputTokens, record.OutputTokens, record.TotalTokens = &in, &out, &total
	}

	if _, err := e.promptRuns.UpdateByID(ctx, record.ID.String(), record); err != nil {
		return nil, &StateWriteError{Op: "failed to record step completion", Err: err}
	}

	return result, nil
}

func (e *StepExecutor) dispatch(ctx context.Context, run *models.Run, prompt *models.Prompt, inputImageURL string, attachments []string) (*providers.StepResult, error) {
	rendered := renderPrompt(prompt, run.Variables)

	adapter, err := e.registry.Resolve(prompt.EndpointType, prompt.SelectedProvider)
	if err != nil {
		return nil, err
	}

	if e.safety != nil {
		if err := e.safety.Check(ctx, renderedText(rendered)); err != nil {
			return nil, err
		}
	}

	return adapter.Execute(ctx, &providers.StepRequest{
		Prompt:         rendered,
		Run:            run,
		InputImageURL:  inputImageURL,
		AttachmentURLs: attachments,
		Uploader:       e.uploader,
	})
}

// renderPrompt renders the template-bearing fields against the run's
// variables on a detached copy. The persisted prompt keeps its raw
// templates.
func renderPrompt(prompt *models.Prompt, vars map[string]any) *models.Prompt {
	rendered := prompt.RenderedCopy()
	rendered.SystemPrompt = template.Render(rendered.SystemPrompt, vars)
	rendered.BackgroundPrompt = template.Render(rendered.BackgroundPrompt, vars)
	rendered.ForegroundPrompt = template.Render(rendered.ForegroundPrompt, vars)
	rendered.NegativePrompt = template.Render(rendered.NegativePrompt, vars)
	return rendered
}

func renderedText(p *models.Prompt) string {
	parts := make([]string, 0, 4)
	for _, text := range []string{p.SystemPrompt, p.BackgroundPrompt, p.ForegroundPrompt, p.NegativePrompt} {
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func resultAttachments(result *providers.StepResult) []string {
	if len(result.AttachmentURLs) > 0 {
		return result.AttachmentURLs
	}
	if result.OutputURL != "" {
		return []string{result.OutputURL}
	}
	return nil
}

func resultMediaIDs(result *providers.StepResult) []string {
	if len(result.OutputMediaIDs) > 0 {
		return result.OutputMediaIDs
	}
	if result.OutputMediaID != "" {
		return []string{result.OutputMediaID}
	}
	return nil
}
