// Package worker runs pending workflow runs from the store in the
// background. A single worker processes runs sequentially, oldest first.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/scribehq/scribe/internal/logger"
	"github.com/scribehq/scribe/internal/run"
	"github.com/scribehq/scribe/internal/workflow"
)

const defaultPollInterval = 5 * time.Second

// RunSource is the slice of the store the worker polls: the oldest pending
// run record, or nil when none remain.
type RunSource interface {
	NextPending() (*run.Record, error)
}

// Worker polls the store for pending run records and executes them.
type Worker struct {
	store    RunSource
	engine   *workflow.Engine
	interval time.Duration
	log      *logger.Logger
}

// New creates a worker polling at the given interval.
func New(st RunSource, engine *workflow.Engine, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Worker{
		store:    st,
		engine:   engine,
		interval: interval,
		log:      logger.GetLogger(),
	}
}

// SetLogger overrides the worker's logger (mainly for testing).
func (w *Worker) SetLogger(log *logger.Logger) {
	w.log = log
}

// Run polls until the context is cancelled. It drains all pending runs on
// each tick, so a burst of enqueued runs does not wait one interval per run.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithField("poll_interval", w.interval.String()).Info("Worker started")

	if err := w.Drain(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker stopped")
			return nil
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				return err
			}
		}
	}
}

// Drain executes pending runs until none remain or the context is cancelled.
// Execution failures mark the run failed and do not stop the drain; only
// store errors and context cancellation do. A run that errored and is still
// returned as pending could not persist its transition, so the drain ends and
// leaves it for the next poll instead of spinning on it.
func (w *Worker) Drain(ctx context.Context) error {
	var stuckID string
	for {
		if ctx.Err() != nil {
			return nil
		}

		rec, err := w.store.NextPending()
		if err != nil {
			return fmt.Errorf("failed to poll for pending runs: %w", err)
		}
		if rec == nil {
			return nil
		}
		if rec.ID == stuckID {
			w.log.WithField("run_id", rec.ID).Warn("Pending run did not advance; deferring to the next poll")
			return nil
		}

		if err := w.process(ctx, rec); err != nil {
			stuckID = rec.ID
		}
	}
}

func (w *Worker) process(ctx context.Context, rec *run.Record) error {
	log := w.log.WithFields(map[string]interface{}{
		"run_id":   rec.ID,
		"workflow": rec.WorkflowName,
	})
	log.Info("Picked up pending run")

	final, err := w.engine.Execute(ctx, rec)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"status": string(final.Status),
			"error":  err.Error(),
		}).Error("Run finished with error")
		return err
	}
	log.WithFields(map[string]interface{}{
		"status":   string(final.Status),
		"duration": final.Duration().String(),
	}).Info("Run finished")
	return nil
}
