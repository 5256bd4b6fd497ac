package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/queue"
)

// ErrAlreadyRunning means another pool owns this data directory.
var ErrAlreadyRunning = errors.New("worker: pool already running")

// Pool spawns and tracks a fixed set of workers over one queue
// manager, persists its liveness record, and coordinates graceful
// shutdown.
type Pool struct {
	queue  *queue.Manager
	runner CommandRunner
	cfg    *config.Config
	dir    string
	count  int
	logger *slog.Logger

	workers  []*Worker
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopping chan struct{}
}

// NewPool creates a pool of count workers rooted at the data directory.
func NewPool(q *queue.Manager, r CommandRunner, cfg *config.Config, dir string, count int, logger *slog.Logger) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		queue:    q,
		runner:   r,
		cfg:      cfg,
		dir:      dir,
		count:    count,
		logger:   logger,
		stopping: make(chan struct{}),
	}
}

// Run starts the pool and blocks until it is stopped by Stop, an
// interrupt signal, or cancellation of ctx. Before any worker spawns,
// jobs orphaned by a previous crash are recovered back to pending.
//
// Shutdown is graceful but bounded: workers stop claiming immediately,
// in-flight commands get up to the configured shutdown timeout to
// finish, and after that the pool exits anyway — any job still
// processing is reconciled by the next startup's orphan recovery.
func (p *Pool) Run(ctx context.Context) error {
	st, err := ReadStatus(p.dir)
	if err != nil {
		return fmt.Errorf("read pool status: %w", err)
	}
	if st.Alive() {
		return fmt.Errorf("%w (pid %d since %s)", ErrAlreadyRunning, st.PID, st.StartedAt.Format(time.RFC3339))
	}

	recovered, err := p.queue.RecoverOrphans()
	if err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}
	if recovered > 0 {
		p.logger.Info("recovered orphaned jobs", slog.Int("count", recovered))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	defer cancel()

	ids := make([]string, p.count)
	p.workers = make([]*Worker, p.count)
	for i := 0; i < p.count; i++ {
		ids[i] = fmt.Sprintf("worker-%d-%d", os.Getpid(), i+1)
		p.workers[i] = New(ids[i], p.queue, p.runner, p.cfg, p.logger)
	}

	if err := writeStatus(p.dir, &Status{
		PID:       os.Getpid(),
		WorkerIDs: ids,
		StartedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("write pool status: %w", err)
	}
	defer removeStatus(p.dir)

	p.logger.Info("worker pool started",
		slog.Int("workers", p.count),
		slog.Int("pid", os.Getpid()),
	)

	var g errgroup.Group
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			w.Run(workerCtx)
			return nil
		})
	}
	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	// SIGINT/SIGTERM take the same stop path as Stop(). Stop is
	// idempotent, so repeated signals are harmless.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				p.logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
				p.Stop()
			case <-p.stopping:
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		p.Stop()
	case <-p.stopping:
	}

	select {
	case <-finished:
		p.logger.Info("worker pool stopped")
	case <-time.After(p.cfg.ShutdownTimeoutDuration()):
		p.logger.Warn("shutdown timeout elapsed, abandoning in-flight jobs",
			slog.Duration("timeout", p.cfg.ShutdownTimeoutDuration()),
		)
	}
	return nil
}

// Stop transitions every worker to stopping: no new claims, in-flight
// jobs allowed to finish within the shutdown timeout. Safe to call any
// number of times from any goroutine.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopping)
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// SignalStop asks the pool that owns dir to shut down by sending
// SIGTERM to its recorded pid. Returns the pid signaled, or
// ErrNotRunning when no live pool owns the directory.
func SignalStop(dir string) (int, error) {
	st, err := ReadStatus(dir)
	if err != nil {
		return 0, err
	}
	if !st.Alive() {
		return 0, ErrNotRunning
	}
	if err := syscall.Kill(st.PID, syscall.SIGTERM); err != nil {
		return 0, err
	}
	return st.PID, nil
}

// ErrNotRunning means no live pool owns the data directory.
var ErrNotRunning = errors.New("worker: no pool running")
