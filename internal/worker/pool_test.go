package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srujanreddy27/queuectl/internal/model"
	"github.com/srujanreddy27/queuectl/internal/runner"
)

func startPool(t *testing.T, p *Pool) (errCh chan error) {
	t.Helper()
	errCh = make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()
	return errCh
}

func waitForPool(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop in time")
		return nil
	}
}

// After a simulated crash left a job processing, a fresh pool moves it
// back to pending before any worker can claim, then processes it.
func TestPoolRecoversOrphansBeforeSpawning(t *testing.T) {
	q, store, cfg, dir := newTestEnv(t)

	orphan := &model.Job{
		ID:         "orphan",
		Command:    "echo hi",
		State:      model.StateProcessing,
		WorkerID:   "worker-from-before-the-crash",
		MaxRetries: 3,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, store.Append(orphan))

	r := &fakeRunner{results: map[string]runner.Result{
		"echo hi": {Success: true, Output: "hi"},
	}}
	p := NewPool(q, r, cfg, dir, 2, testLogger())
	errCh := startPool(t, p)

	assert.Eventually(t, func() bool {
		got, err := store.Get("orphan")
		return err == nil && got != nil && got.State == model.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	p.Stop()
	require.NoError(t, waitForPool(t, errCh))
}

func TestPoolRefusesDoubleStart(t *testing.T) {
	q, _, cfg, dir := newTestEnv(t)

	// A liveness record owned by this very process is definitely alive.
	require.NoError(t, writeStatus(dir, &Status{
		PID:       os.Getpid(),
		WorkerIDs: []string{"worker-1"},
		StartedAt: time.Now(),
	}))

	p := NewPool(q, &fakeRunner{}, cfg, dir, 1, testLogger())
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestPoolIgnoresStaleStatusFile(t *testing.T) {
	q, _, cfg, dir := newTestEnv(t)

	// Pid 0 can never be a live pool.
	require.NoError(t, writeStatus(dir, &Status{PID: 0, StartedAt: time.Now()}))

	p := NewPool(q, &fakeRunner{}, cfg, dir, 1, testLogger())
	errCh := startPool(t, p)

	assert.Eventually(t, func() bool {
		st, err := ReadStatus(dir)
		return err == nil && st != nil && st.PID == os.Getpid()
	}, 3*time.Second, 10*time.Millisecond)

	p.Stop()
	require.NoError(t, waitForPool(t, errCh))
}

func TestPoolWritesAndRemovesLiveness(t *testing.T) {
	q, _, cfg, dir := newTestEnv(t)
	p := NewPool(q, &fakeRunner{}, cfg, dir, 3, testLogger())
	errCh := startPool(t, p)

	assert.Eventually(t, func() bool {
		st, err := ReadStatus(dir)
		return err == nil && st != nil && len(st.WorkerIDs) == 3 && st.Alive()
	}, 3*time.Second, 10*time.Millisecond)

	p.Stop()
	require.NoError(t, waitForPool(t, errCh))

	st, err := ReadStatus(dir)
	require.NoError(t, err)
	assert.Nil(t, st, "liveness file should be removed on clean shutdown")
}

func TestPoolStopIsIdempotent(t *testing.T) {
	q, _, cfg, dir := newTestEnv(t)
	p := NewPool(q, &fakeRunner{}, cfg, dir, 1, testLogger())
	errCh := startPool(t, p)

	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		p.Stop()
	}
	require.NoError(t, waitForPool(t, errCh))
}

// Stop lets the in-flight job finish as long as it fits inside the
// shutdown timeout.
func TestPoolGracefulStopWaitsForInflightJob(t *testing.T) {
	q, store, cfg, dir := newTestEnv(t)
	cfg.ShutdownTimeout = 5

	r := &fakeRunner{
		delay: 300 * time.Millisecond,
		results: map[string]runner.Result{
			"slowish": {Success: true, Output: "done"},
		},
	}
	job, err := q.Enqueue("slowish", -1)
	require.NoError(t, err)

	p := NewPool(q, r, cfg, dir, 1, testLogger())
	errCh := startPool(t, p)

	assert.Eventually(t, func() bool { return r.callCount() > 0 }, 3*time.Second, 5*time.Millisecond)
	p.Stop()
	require.NoError(t, waitForPool(t, errCh))

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, got.State)
}

// If the in-flight job outlives the shutdown timeout, the pool exits
// anyway and the job is left processing for the next startup's orphan
// recovery.
func TestPoolShutdownTimeoutAbandonsInflightJob(t *testing.T) {
	q, store, cfg, dir := newTestEnv(t)
	cfg.ShutdownTimeout = 0.2

	r := &fakeRunner{
		delay: 10 * time.Second,
		results: map[string]runner.Result{
			"very-slow": {Success: true},
		},
	}
	job, err := q.Enqueue("very-slow", -1)
	require.NoError(t, err)

	p := NewPool(q, r, cfg, dir, 1, testLogger())
	errCh := startPool(t, p)

	assert.Eventually(t, func() bool { return r.callCount() > 0 }, 3*time.Second, 5*time.Millisecond)

	stopStart := time.Now()
	p.Stop()
	require.NoError(t, waitForPool(t, errCh))
	assert.Less(t, time.Since(stopStart), 3*time.Second)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateProcessing, got.State, "abandoned job stays processing until next startup recovers it")
}
