// Package worker contains the polling workers and the pool that
// spawns, tracks, and gracefully stops them. Workers share nothing in
// memory; all coordination goes through the durable store via the
// queue manager.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/model"
	"github.com/srujanreddy27/queuectl/internal/queue"
	"github.com/srujanreddy27/queuectl/internal/runner"
	"github.com/srujanreddy27/queuectl/internal/storage"
)

// CommandRunner executes one command with a timeout. Satisfied by
// *runner.Runner; tests substitute their own.
type CommandRunner interface {
	Execute(command string, timeout time.Duration) runner.Result
}

// Worker is a single-threaded polling agent. On each tick it attempts
// exactly one claim; while a claimed job runs, the worker is busy and
// never tries a second claim.
type Worker struct {
	id     string
	queue  *queue.Manager
	runner CommandRunner
	cfg    *config.Config
	logger *slog.Logger

	completed atomic.Int64
	failed    atomic.Int64
	errors    atomic.Int64
}

// New creates a worker.
func New(id string, q *queue.Manager, r CommandRunner, cfg *config.Config, logger *slog.Logger) *Worker {
	return &Worker{
		id:     id,
		queue:  q,
		runner: r,
		cfg:    cfg,
		logger: logger.With(slog.String("worker_id", id)),
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string { return w.id }

// Completed returns how many jobs this worker finished successfully.
func (w *Worker) Completed() int64 { return w.completed.Load() }

// Failed returns how many job executions this worker reported as failed.
func (w *Worker) Failed() int64 { return w.failed.Load() }

// Run polls for jobs until ctx is canceled. The stop signal is only
// checked between jobs: an in-flight command always runs to completion
// (or its own timeout) before the worker exits.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")

	ticker := time.NewTicker(w.cfg.PollIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped",
				slog.Int64("completed", w.completed.Load()),
				slog.Int64("failed", w.failed.Load()),
			)
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// tick claims at most one job and processes it. Errors are logged and
// counted, never allowed to kill the poll loop; a lock timeout simply
// means the store was contended and the next tick will try again.
func (w *Worker) tick() {
	job, err := w.queue.Claim(w.id)
	if err != nil {
		if errors.Is(err, storage.ErrLockTimeout) {
			w.logger.Warn("store busy, retrying next tick")
		} else {
			w.errors.Add(1)
			w.logger.Error("claim failed", slog.String("error", err.Error()))
		}
		return
	}
	if job == nil {
		return
	}
	w.process(job)
}

// process runs the claimed job and reports the outcome. The store lock
// is never held across this call; only the claim and the final report
// touch the store.
func (w *Worker) process(job *model.Job) {
	w.logger.Info("processing job",
		slog.String("job_id", job.ID),
		slog.String("command", job.Command),
		slog.Int("attempts", job.Attempts),
	)

	res := w.runner.Execute(job.Command, w.cfg.JobTimeoutDuration())

	if res.Success {
		if err := w.queue.Complete(job.ID, res.Output); err != nil {
			w.errors.Add(1)
			w.logger.Error("failed to record completion",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		w.completed.Add(1)
		w.logger.Info("job completed", slog.String("job_id", job.ID))
		return
	}

	errMsg := fmt.Sprintf("%s (exit code %d)", res.Error, res.ExitCode)
	if err := w.queue.Fail(job.ID, errMsg); err != nil {
		w.errors.Add(1)
		w.logger.Error("failed to record failure",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	w.failed.Add(1)
	w.logger.Warn("job failed",
		slog.String("job_id", job.ID),
		slog.Int("exit_code", res.ExitCode),
		slog.String("error", res.Error),
	)
}
