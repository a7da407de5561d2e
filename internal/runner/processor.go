package runner

import (
	"context"
	"errors"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/mq"
	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

// Processor drains queued run tasks onto a bounded worker pool.
// Concurrency across runs is capped by the pool; steps within one run
// stay strictly sequential inside the runner.
type Processor struct {
	queue  mq.MQ
	runner *Runner
	runs   repository.IRunRepository
	wp     *workerpool.WorkerPool
	topic  string

	pendingTimeout time.Duration
}

func NewProcessor(queue mq.MQ, runner *Runner, runs repository.IRunRepository, cfg *config.RunnerConfig) *Processor {
	maxConcurrent := config.DefaultMaxConcurrentRuns
	pendingTimeout := time.Duration(config.DefaultPendingTimeoutMin) * time.Minute
	if cfg != nil {
		if cfg.MaxConcurrentRuns > 0 {
			maxConcurrent = cfg.MaxConcurrentRuns
		}
		if cfg.PendingTimeoutMin > 0 {
			pendingTimeout = time.Duration(cfg.PendingTimeoutMin) * time.Minute
		} else if cfg.PendingTimeoutMin < 0 {
			// Negative disables the reaper; zero means unset.
			pendingTimeout = 0
		}
	}

	return &Processor{
		queue:          queue,
		runner:         runner,
		runs:           runs,
		wp:             workerpool.New(maxConcurrent),
		topic:          config.DefaultRunsTopic,
		pendingTimeout: pendingTimeout,
	}
}

// Enqueue publishes a run task for asynchronous execution.
func (p *Processor) Enqueue(ctx context.Context, runID string) error {
	data, err := msgpack.Marshal(&types.RunTask{RunID: runID})
	if err != nil {
		return err
	}

	return p.queue.Publish(ctx, p.topic, data)
}

// Start consumes run tasks until the context is cancelled or the
// queue closes.
func (p *Processor) Start(ctx context.Context) error {
	for {
		message, err := p.queue.Receive(ctx, p.topic)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, mq.ErrQueueClosed) || errors.Is(err, mq.ErrTopicClosed) {
				return nil
			}
			logger.Error("Failed to receive run task", err)
			continue
		}

		data, err := p.queue.GetMessageData(message)
		if err != nil {
			logger.Error("Failed to read run task", err)
			continue
		}

		var task types.RunTask
		if err := msgpack.Unmarshal(data, &task); err != nil {
			logger.Error("Failed to decode run task", err)
			p.queue.Ack(p.topic, message)
			continue
		}

		p.wp.Submit(func() {
			p.execute(ctx, task.RunID)
		})
		p.queue.Ack(p.topic, message)
	}
}

func (p *Processor) execute(ctx context.Context, runID string) {
	outcome, err := p.runner.ExecuteRun(ctx, runID)
	if err != nil {
		logger.Error("Run execution aborted", runID, err)
		return
	}
	if outcome.AlreadyProcessed {
		logger.Info("Run already processed", runID, outcome.Status)
		return
	}

	logger.Info("Run finished", runID, outcome.Status)
}

// StartReaper periodically sweeps runs stuck pending past the timeout
// into timed-out. A killed process leaves its pending runs behind; the
// sweep keeps them from looking alive forever.
func (p *Processor) StartReaper(ctx context.Context, interval time.Duration) {
	if p.pendingTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := p.runs.MarkTimedOutBefore(ctx, time.Now().Add(-p.pendingTimeout))
			if err != nil {
				logger.Error("Failed to sweep stale runs", err)
				continue
			}
			if swept > 0 {
				logger.Warn("Swept stale pending runs", swept)
			}
		}
	}
}

// Stop drains the worker pool, waiting for in-flight runs.
func (p *Processor) Stop() {
	p.wp.StopWait()
}
