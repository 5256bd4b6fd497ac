package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecuteSuccessCapturesStdout(t *testing.T) {
	r := New()
	res := r.Execute("echo ok", 5*time.Second)

	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Output)
	assert.Empty(t, res.Error)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecuteNonZeroExit(t *testing.T) {
	r := New()
	res := r.Execute("exit 3", 5*time.Second)

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.NotEmpty(t, res.Error)
}

func TestExecutePrefersStderrOverExitStatus(t *testing.T) {
	r := New()
	res := r.Execute("echo broken >&2; exit 1", 5*time.Second)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "broken", res.Error)
}

func TestExecuteTimeoutTerminatesProcess(t *testing.T) {
	r := NewWithGracePeriod(200 * time.Millisecond)

	start := time.Now()
	res := r.Execute("sleep 30", 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
	assert.Less(t, elapsed, 5*time.Second, "timeout must not wait for the command")
}

func TestExecuteTimeoutEscalatesToKill(t *testing.T) {
	r := NewWithGracePeriod(200 * time.Millisecond)

	// The child traps SIGTERM, so only the SIGKILL escalation ends it.
	start := time.Now()
	res := r.Execute(`trap "" TERM; sleep 30`, 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestExecuteSpawnFailure(t *testing.T) {
	r := New()
	res := r.Execute("/definitely/not/a/binary", 5*time.Second)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestExecuteNeverPanicsOrErrorsStructurally(t *testing.T) {
	r := New()
	for _, cmd := range []string{"", "true", "false", "echo multi; echo line"} {
		res := r.Execute(cmd, 2*time.Second)
		// Every outcome is a structured result; nothing escapes.
		if res.Success {
			assert.Empty(t, res.Error)
		} else {
			assert.NotEmpty(t, res.Error)
		}
	}
}
