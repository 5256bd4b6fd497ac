// Package queue implements the job lifecycle state machine. The
// Manager is the sole writer of job state: every transition — enqueue,
// claim, complete, fail, DLQ retry, orphan recovery — goes through it,
// and each one executes atomically inside the store's critical section.
package queue

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/model"
	"github.com/srujanreddy27/queuectl/internal/storage"
)

// MaxCommandLen is the ceiling on an enqueued command's length.
const MaxCommandLen = 4096

var (
	// ErrInvalidCommand means the command failed validation and was
	// rejected before anything touched the store.
	ErrInvalidCommand = errors.New("queue: invalid command")

	// ErrInvalidTransition means an operation was applied to a job in
	// the wrong state (e.g. completing a job that is not processing).
	ErrInvalidTransition = errors.New("queue: invalid state transition")
)

// Manager drives all job state transitions over a single store.
type Manager struct {
	store *storage.Store
	cfg   *config.Config
}

// NewManager creates a queue manager.
func NewManager(store *storage.Store, cfg *config.Config) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Enqueue validates the command and appends a fresh pending job.
// maxRetries < 0 selects the configured default.
func (m *Manager) Enqueue(command string, maxRetries int) (*model.Job, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: command is empty", ErrInvalidCommand)
	}
	if len(command) > MaxCommandLen {
		return nil, fmt.Errorf("%w: command exceeds %d bytes", ErrInvalidCommand, MaxCommandLen)
	}
	if maxRetries < 0 {
		maxRetries = m.cfg.MaxRetries
	}

	now := time.Now()
	job := &model.Job{
		ID:         uuid.NewString(),
		Command:    command,
		State:      model.StatePending,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.Append(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Claim hands the oldest eligible job to workerID, already marked
// processing. Selection and busy-marking are indivisible under the
// store lock, so no other worker can observe the job as still
// claimable. Returns nil when nothing is eligible.
func (m *Manager) Claim(workerID string) (*model.Job, error) {
	return m.store.ClaimNextEligible(workerID)
}

// Complete transitions a processing job to completed and records its
// output. The worker id is cleared; attempts are left untouched.
func (m *Manager) Complete(jobID, output string) error {
	ok, err := m.store.Update(jobID, func(j *model.Job) error {
		if j.State != model.StateProcessing {
			return fmt.Errorf("%w: complete on %s job %s", ErrInvalidTransition, j.State, j.ID)
		}
		j.State = model.StateCompleted
		j.WorkerID = ""
		j.NextRetryAt = nil
		j.Output = output
		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("complete: job %s not found", jobID)
	}
	return nil
}

// Fail records a failed execution. Attempts is incremented; if the
// retry budget is exhausted the job is parked dead, otherwise it is
// scheduled for retry with exponential backoff. The backoff exponent is
// the post-increment attempt count: the first failure waits
// backoff_base^1 seconds, not backoff_base^0.
func (m *Manager) Fail(jobID, errMsg string) error {
	ok, err := m.store.Update(jobID, func(j *model.Job) error {
		if j.State != model.StateProcessing {
			return fmt.Errorf("%w: fail on %s job %s", ErrInvalidTransition, j.State, j.ID)
		}
		j.Attempts++
		j.WorkerID = ""
		j.LastError = errMsg
		if j.Attempts >= j.MaxRetries {
			j.State = model.StateDead
			j.NextRetryAt = nil
			return nil
		}
		j.State = model.StateFailed
		next := time.Now().Add(BackoffDelay(m.cfg.BackoffBase, j.Attempts))
		j.NextRetryAt = &next
		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("fail: job %s not found", jobID)
	}
	return nil
}

// RetryDead resurrects a dead-letter job: attempts back to zero, error
// and retry schedule cleared, state pending. Returns false — with no
// state change — if the job is absent or not dead.
func (m *Manager) RetryDead(jobID string) (bool, error) {
	notDead := errors.New("not dead")
	ok, err := m.store.Update(jobID, func(j *model.Job) error {
		if j.State != model.StateDead {
			return notDead
		}
		j.State = model.StatePending
		j.Attempts = 0
		j.LastError = ""
		j.NextRetryAt = nil
		return nil
	})
	if errors.Is(err, notDead) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// RecoverOrphans forces every processing job back to pending. These are
// jobs abandoned by a worker process that died mid-execution; there is
// no cross-restart liveness tracking, so a fresh pool must assume all
// of them are orphans before it claims anything. Returns the reset
// count for operator visibility.
func (m *Manager) RecoverOrphans() (int, error) {
	return m.store.ResetProcessing()
}

// CleanupCompleted removes completed jobs that last changed more than
// olderThan ago. This is the only way jobs ever leave the store.
func (m *Manager) CleanupCompleted(olderThan time.Duration) (int, error) {
	return m.store.DeleteCompletedBefore(time.Now().Add(-olderThan))
}

// BackoffDelay returns base^attempts seconds.
func BackoffDelay(base float64, attempts int) time.Duration {
	return time.Duration(math.Pow(base, float64(attempts)) * float64(time.Second))
}
