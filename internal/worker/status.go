package worker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// statusFileName is the pool liveness file inside the data directory.
const statusFileName = "worker.status"

// Status is the persisted liveness record for a running pool. A second
// invocation reads it to detect an already-running pool and refuse to
// double-start.
type Status struct {
	PID       int       `json:"pid"`
	WorkerIDs []string  `json:"worker_ids"`
	StartedAt time.Time `json:"started_at"`
}

// ReadStatus loads the liveness file from dir. Returns nil with no
// error when the file does not exist.
func ReadStatus(dir string) (*Status, error) {
	data, err := os.ReadFile(filepath.Join(dir, statusFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Alive reports whether the recorded owning process still exists.
func (s *Status) Alive() bool {
	if s == nil || s.PID <= 0 {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	err := syscall.Kill(s.PID, 0)
	return err == nil || err == syscall.EPERM
}

func writeStatus(dir string, st *Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, statusFileName), data, 0o644)
}

func removeStatus(dir string) {
	_ = os.Remove(filepath.Join(dir, statusFileName))
}
