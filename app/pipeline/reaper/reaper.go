// Package reaper implements the stuck-document sweep spec §9's open
// question resolves in favor of: a process can crash between popping a
// job and committing its stage transition, leaving a document sitting in
// a non-terminal stage with nothing left to pop it back off a queue.
// Grounded in the teacher's app/logic/v1/process.Process cron wiring
// (robfig/cron/v3, started/stopped alongside the rest of the worker
// fleet), generalized from RSS/podcast re-polling to a stuck-stage sweep.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/metrics"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// sweepableStages are every non-terminal processing_stage; complete and
// error documents are never re-enqueued by the reaper.
var sweepableStages = []types.DocumentStage{
	types.StagePending,
	types.StageChunking,
	types.StageEmbedding,
	types.StageEvaluating,
	types.StageExtracting,
	types.StageResolving,
}

// Reaper periodically re-enqueues documents whose processing_stage column
// hasn't advanced within the configured threshold, under the assumption
// that whatever worker had popped the job either crashed or lost the
// queue entry.
type Reaper struct {
	core *core.Core
	cron *cron.Cron
}

func New(c *core.Core) *Reaper {
	return &Reaper{core: c, cron: cron.New()}
}

// Start schedules the sweep on the configured interval and runs it
// immediately once so a freshly started fleet doesn't wait a full
// interval before its first pass.
func (r *Reaper) Start(ctx context.Context) error {
	interval := time.Duration(r.core.Config.Pipeline.ReaperIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	_, err := r.cron.AddFunc(every(interval), func() { r.sweep(ctx) })
	if err != nil {
		return err
	}

	r.cron.Start()
	go r.sweep(ctx)
	return nil
}

// Stop drains the cron scheduler, waiting for any in-flight scheduled sweep
// to finish before returning; the immediate sweep Start launches in its own
// goroutine is not waited for.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reaper) sweep(ctx context.Context) {
	threshold := time.Duration(r.core.Config.Pipeline.ReaperStuckAfterSeconds) * time.Second
	cutoff := time.Now().Add(-threshold).Unix()

	for _, stage := range sweepableStages {
		r.sweepStage(ctx, stage, cutoff)
	}
}

func (r *Reaper) sweepStage(ctx context.Context, stage types.DocumentStage, cutoff int64) {
	logger := r.core.Logger.With(slog.String("component", "reaper"), slog.String("stage", string(stage)))

	docs, err := r.core.Store.Documents.ListStuckSince(ctx, stage, cutoff)
	if err != nil {
		logger.Error("failed to list stuck documents", slog.Any("error", err))
		return
	}
	if len(docs) == 0 {
		return
	}

	queueName, ok := types.NextQueue(stage)
	if !ok {
		logger.Warn("stuck documents found in a stage with no input queue to requeue onto", slog.Int("count", len(docs)))
		return
	}

	for _, doc := range docs {
		if err := r.core.Queue.Push(ctx, queueName, doc.ID); err != nil {
			logger.Error("failed to requeue stuck document", slog.String("document_id", doc.ID), slog.Any("error", err))
			continue
		}
		metrics.ReaperRequeuedTotal.WithLabelValues(string(stage)).Inc()
		logger.Warn("requeued stuck document", slog.String("document_id", doc.ID))
	}
}

// every renders a cron spec for a fixed interval using the "@every"
// shorthand robfig/cron supports directly.
func every(d time.Duration) string {
	return "@every " + d.String()
}
