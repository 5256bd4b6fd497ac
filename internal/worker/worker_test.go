package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/model"
	"github.com/srujanreddy27/queuectl/internal/queue"
	"github.com/srujanreddy27/queuectl/internal/runner"
	"github.com/srujanreddy27/queuectl/internal/storage"
)

// fakeRunner returns canned results per command, optionally stalling to
// simulate long-running commands.
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]runner.Result
	delay   time.Duration
	calls   []string
}

func (f *fakeRunner) Execute(command string, timeout time.Duration) runner.Result {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	res, ok := f.results[command]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return runner.Result{Success: true}
	}
	return res
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) (*queue.Manager, *storage.Store, *config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.PollInterval = 0.02
	cfg.ShutdownTimeout = 5
	store, err := storage.NewStore(dir, 2*time.Second)
	require.NoError(t, err)
	return queue.NewManager(store, cfg), store, cfg, dir
}

func TestWorkerProcessesJobToCompletion(t *testing.T) {
	q, store, cfg, _ := newTestEnv(t)
	r := &fakeRunner{results: map[string]runner.Result{
		"echo ok": {Success: true, Output: "ok"},
	}}
	w := New("w1", q, r, cfg, testLogger())

	job, err := q.Enqueue("echo ok", -1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		got, err := store.Get(job.ID)
		return err == nil && got != nil && got.State == model.StateCompleted
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Output)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.WorkerID)
	assert.Equal(t, int64(1), w.Completed())
	assert.Equal(t, int64(0), w.Failed())
}

func TestWorkerRecordsFailure(t *testing.T) {
	q, store, cfg, _ := newTestEnv(t)
	r := &fakeRunner{results: map[string]runner.Result{
		"exit 1": {Success: false, Error: "exit status 1", ExitCode: 1},
	}}
	w := New("w1", q, r, cfg, testLogger())

	job, err := q.Enqueue("exit 1", 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	assert.Eventually(t, func() bool {
		got, err := store.Get(job.ID)
		return err == nil && got != nil && got.State == model.StateFailed
	}, 3*time.Second, 10*time.Millisecond)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "exit status 1")
	assert.NotNil(t, got.NextRetryAt)
	assert.Equal(t, int64(1), w.Failed())
}

func TestWorkerStopsBetweenJobs(t *testing.T) {
	q, _, cfg, _ := newTestEnv(t)
	w := New("w1", q, &fakeRunner{}, cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

// A broken store must not kill the poll loop; the worker keeps ticking
// and recovers once the store is usable again.
func TestWorkerSurvivesClaimErrors(t *testing.T) {
	q, store, cfg, dir := newTestEnv(t)
	w := New("w1", q, &fakeRunner{results: map[string]runner.Result{
		"echo hi": {Success: true, Output: "hi"},
	}}, cfg, testLogger())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.json"), []byte("{corrupt"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Let several failing ticks elapse.
	time.Sleep(150 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("worker exited on claim error")
	default:
	}

	// Repair the store; the worker should pick work up again.
	require.NoError(t, os.Remove(filepath.Join(dir, "jobs.json")))
	job, err := q.Enqueue("echo hi", -1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := store.Get(job.ID)
		return err == nil && got != nil && got.State == model.StateCompleted
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
