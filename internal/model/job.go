package model

import "time"

// State is the closed set of lifecycle states a job can be in.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dead"
)

// States lists every valid state, in lifecycle order.
var States = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}

// Valid reports whether s is one of the five known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateDead:
		return true
	}
	return false
}

// Job is a single queued shell command and its execution history.
// All mutation goes through the queue manager; nothing writes these
// fields directly.
type Job struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	State       State      `json:"state"`
	Attempts    int        `json:"attempts"`
	MaxRetries  int        `json:"max_retries"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"` // set iff state == failed
	WorkerID    string     `json:"worker_id,omitempty"`     // set iff state == processing
	LastError   string     `json:"last_error,omitempty"`
	Output      string     `json:"output,omitempty"`
}

// Eligible reports whether the job can be claimed at time now:
// pending, or failed with its retry delay elapsed.
func (j *Job) Eligible(now time.Time) bool {
	switch j.State {
	case StatePending:
		return true
	case StateFailed:
		return j.NextRetryAt == nil || !j.NextRetryAt.After(now)
	case StateProcessing, StateCompleted, StateDead:
		return false
	}
	return false
}
