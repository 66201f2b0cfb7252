// Package runtime implements the generic worker-loop skeleton spec §4.4
// describes: pop a job, run the stage's transformation, either advance the
// document to the next stage and push its next-queue entry, or record a
// terminal error — never letting a stage's exception cross the loop
// boundary (spec §7's "never propagate an exception across a stage
// boundary" policy). Grounded in original_source/workers/shared/pipeline.py
// (log_processing/advance_to_next_stage) and graceful.py (signal-driven
// shutdown), expressed with context.Context cancellation instead of a
// process-wide singleton flag, and pkg/safe-wrapped goroutines per the
// teacher's panic-recovery idiom.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/metrics"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
	"github.com/ironvale-labs/dtcforge/pkg/safe"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// StageFunc performs one stage's transformation for one document/job ID.
// Apart from the self-advancing stages wired with an empty NextStage
// (Crawl, Resolve), it never mutates the document's processing_stage
// column itself — that's the runtime's job once StageFunc returns
// successfully.
type StageFunc func(ctx context.Context, c *core.Core, jobID string) *pipelineerr.StageError

// StageDef wires one pipeline stage to its input queue and its successor.
type StageDef struct {
	// Name is the stage label stored on processing_log rows (e.g. "chunking").
	Name string
	// Queue is this stage's input queue.
	Queue types.QueueName
	// NextStage is the document stage to transition to on success; the
	// empty string marks a self-advancing stage (Crawl: creates its
	// document in `chunking` and pushes jobs:chunk itself; Resolve: advances
	// to `complete` itself, inside Do), so the runtime does nothing further.
	NextStage types.DocumentStage
	// NextQueue is the queue to push to after the stage transition commits.
	// Empty when NextStage is empty or when the stage has no downstream queue.
	NextQueue types.QueueName
	Do        StageFunc
}

// Run launches workerCount goroutines pulling from def.Queue until ctx is
// canceled. Each worker finishes its in-flight job before exiting (spec
// §4.4's shutdown guarantee) and never picks up a new one afterward.
func Run(ctx context.Context, c *core.Core, def StageDef, workerCount int) {
	if workerCount < 1 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			safe.Run(func() { loop(ctx, c, def, worker) })
		}(i)
	}
	wg.Wait()
}

func loop(ctx context.Context, c *core.Core, def StageDef, worker int) {
	popTimeout := time.Duration(c.Config.Pipeline.QueuePopTimeoutSeconds) * time.Second
	logger := c.Logger.With(slog.String("stage", def.Name), slog.Int("worker", worker))

	for {
		if ctx.Err() != nil {
			logger.Info("shutting down, no new jobs will be picked up")
			return
		}

		jobID, ok, err := c.Queue.Pop(ctx, def.Queue, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return // canceled mid-pop; exit quietly rather than log noise
			}
			logger.Error("queue pop failed", slog.Any("error", err))
			continue
		}
		if !ok {
			continue // timeout elapsed, no job
		}

		processJob(ctx, c, def, jobID, logger)
	}
}

func processJob(ctx context.Context, c *core.Core, def StageDef, jobID string, logger *slog.Logger) {
	start := time.Now()
	logger = logger.With(slog.String("job_id", jobID))
	logger.Info("job accepted")

	writeLog(ctx, c, jobID, def.Name, types.ProcessingStarted, "", nil)

	stageErr := runWithRetry(ctx, c, def, jobID)

	duration := time.Since(start)
	durationMS := duration.Milliseconds()

	if stageErr == nil {
		metrics.StageDuration.WithLabelValues(def.Name, "completed").Observe(duration.Seconds())
		writeLog(ctx, c, jobID, def.Name, types.ProcessingCompleted, "", &durationMS)
		metrics.JobsTotal.WithLabelValues(def.Name, "completed").Inc()
		advance(ctx, c, def, jobID, logger)
		logger.Info("job completed", slog.Duration("duration", duration))
		return
	}

	switch stageErr.Kind {
	case pipelineerr.KindPoison:
		metrics.StageDuration.WithLabelValues(def.Name, "discarded").Observe(duration.Seconds())
		logger.Warn("poison job discarded", slog.Any("error", stageErr))
		metrics.JobsTotal.WithLabelValues(def.Name, "discarded").Inc()
	case pipelineerr.KindLogicalInvariant:
		// The stage already dropped the offending element internally; a
		// StageError of this kind reaching here means it chose to surface
		// it anyway. Log and move on without failing the document.
		metrics.StageDuration.WithLabelValues(def.Name, "invariant_dropped").Observe(duration.Seconds())
		logger.Warn("logical invariant violation", slog.Any("error", stageErr))
		metrics.JobsTotal.WithLabelValues(def.Name, "invariant_dropped").Inc()
	default:
		message := stageErr.Error()
		metrics.StageDuration.WithLabelValues(def.Name, "error").Observe(duration.Seconds())
		writeLog(ctx, c, jobID, def.Name, types.ProcessingError, message, &durationMS)
		if markErr := c.Store.Documents.MarkError(ctx, jobID, message); markErr != nil {
			logger.Error("failed to mark document error", slog.Any("error", markErr))
		}
		metrics.JobsTotal.WithLabelValues(def.Name, "error").Inc()
		logger.Error("job failed", slog.Any("error", stageErr), slog.Duration("duration", duration))
	}
}

// runWithRetry retries a transient failure locally per the configured
// retry policy before giving up; only the last attempt's error is returned.
func runWithRetry(ctx context.Context, c *core.Core, def StageDef, jobID string) *pipelineerr.StageError {
	attempts := c.Config.Pipeline.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(c.Config.Pipeline.RetryBackoffMS) * time.Millisecond

	var last *pipelineerr.StageError
	for attempt := 1; attempt <= attempts; attempt++ {
		stageErr := def.Do(ctx, c, jobID)
		if stageErr == nil {
			return nil
		}
		last = stageErr
		if !stageErr.Retryable() || attempt == attempts {
			return last
		}
		time.Sleep(backoff)
	}
	return last
}

// advance performs the stage-transition commit, then pushes the next
// queue entry — in that order, per spec §4.4's ordering rationale: a crash
// between commit and push leaves a recoverable orphan, never a lost
// transition.
func advance(ctx context.Context, c *core.Core, def StageDef, jobID string, logger *slog.Logger) {
	if def.NextStage == "" {
		return // self-advancing stage (Crawl, Resolve) commits its own transition
	}

	err := c.DB.Transaction(ctx, func(ctx context.Context) error {
		return c.Store.Documents.AdvanceStage(ctx, jobID, def.NextStage)
	})
	if err != nil {
		logger.Error("failed to commit stage transition", slog.Any("error", err))
		return
	}

	if def.NextQueue == "" {
		return
	}
	if err := c.Queue.Push(ctx, def.NextQueue, jobID); err != nil {
		logger.Error("failed to push next-queue entry; document orphaned in new stage until reaper sweeps it", slog.Any("error", err))
	}
}

func writeLog(ctx context.Context, c *core.Core, documentID, stage string, status types.ProcessingLogStatus, message string, durationMS *int64) {
	entry := &types.ProcessingLogEntry{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Stage:      stage,
		Status:     status,
		Message:    message,
		DurationMS: durationMS,
	}
	if err := c.Store.Documents.AppendProcessingLog(ctx, entry); err != nil {
		c.Logger.Error("failed to write processing log", slog.Any("error", err))
	}
}
