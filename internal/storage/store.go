// Package storage owns the durable job collection and the mutual
// exclusion discipline around it. Jobs live in a single jobs.json file
// per data directory; every read-modify-write runs inside one critical
// section guarded by a kernel advisory lock on queue.lock, and every
// write goes through a temp-file-then-atomic-rename so a crash can
// never leave the file half written.
//
// The whole collection is loaded and rewritten per mutation. That is a
// deliberate scalability ceiling, not an accident: it keeps the
// external contract (one flat file, atomically replaced) trivially
// auditable at the scale this tool targets.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/srujanreddy27/queuectl/internal/model"
)

const (
	jobsFileName = "jobs.json"
	lockFileName = "queue.lock"
)

// Store is a file-backed job collection. It is safe for use from
// multiple processes: all coordination happens through the flock, not
// through shared memory.
type Store struct {
	dir         string
	jobsPath    string
	lock        *flock.Flock
	sem         chan struct{} // in-process half of the mutual exclusion
	lockTimeout time.Duration
}

// NewStore opens (creating if needed) the store rooted at dir.
func NewStore(dir string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		dir:         dir,
		jobsPath:    filepath.Join(dir, jobsFileName),
		lock:        flock.New(filepath.Join(dir, lockFileName)),
		sem:         make(chan struct{}, 1),
		lockTimeout: lockTimeout,
	}, nil
}

// load reads the canonical job file. A missing file is an empty store;
// a file that exists but does not parse is ErrCorruptStore.
func (s *Store) load() ([]model.Job, error) {
	data, err := os.ReadFile(s.jobsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var jobs []model.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.jobsPath, err)
	}
	return jobs, nil
}

// save replaces the canonical job file atomically: write a sibling temp
// file, fsync it, then rename over the original. A crash at any point
// leaves jobs.json either fully old or fully new.
func (s *Store) save(jobs []model.Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, jobsFileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.jobsPath); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// mutate runs fn over the collection inside one critical section and
// persists the result if fn reports a change.
func (s *Store) mutate(fn func(jobs []model.Job) ([]model.Job, bool, error)) error {
	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	jobs, err := s.load()
	if err != nil {
		return err
	}
	next, dirty, err := fn(jobs)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return s.save(next)
}

// view runs fn over a read-only snapshot of the collection, still under
// the lock so it never observes a half-applied transition.
func (s *Store) view(fn func(jobs []model.Job) error) error {
	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	jobs, err := s.load()
	if err != nil {
		return err
	}
	return fn(jobs)
}

// Append adds a new job. Fails with ErrDuplicateID if the id is taken.
func (s *Store) Append(job *model.Job) error {
	return s.mutate(func(jobs []model.Job) ([]model.Job, bool, error) {
		for i := range jobs {
			if jobs[i].ID == job.ID {
				return nil, false, fmt.Errorf("%w: %s", ErrDuplicateID, job.ID)
			}
		}
		return append(jobs, *job), true, nil
	})
}

// Get returns the job with the given id, or nil if absent.
func (s *Store) Get(id string) (*model.Job, error) {
	var found *model.Job
	err := s.view(func(jobs []model.Job) error {
		for i := range jobs {
			if jobs[i].ID == id {
				j := jobs[i]
				found = &j
				return nil
			}
		}
		return nil
	})
	return found, err
}

// Update applies fn to the job with the given id and stamps UpdatedAt,
// all inside one critical section. Returns false without touching
// anything if the id is absent. If fn returns an error the mutation is
// abandoned and nothing is written.
func (s *Store) Update(id string, fn func(*model.Job) error) (bool, error) {
	updated := false
	err := s.mutate(func(jobs []model.Job) ([]model.Job, bool, error) {
		for i := range jobs {
			if jobs[i].ID == id {
				if err := fn(&jobs[i]); err != nil {
					return nil, false, err
				}
				stampUpdated(&jobs[i])
				updated = true
				return jobs, true, nil
			}
		}
		return jobs, false, nil
	})
	return updated, err
}

// Delete removes the job with the given id. Returns false if absent.
func (s *Store) Delete(id string) (bool, error) {
	deleted := false
	err := s.mutate(func(jobs []model.Job) ([]model.Job, bool, error) {
		for i := range jobs {
			if jobs[i].ID == id {
				jobs = append(jobs[:i], jobs[i+1:]...)
				deleted = true
				return jobs, true, nil
			}
		}
		return jobs, false, nil
	})
	return deleted, err
}

// ListByState returns every job in the given state, oldest first.
func (s *Store) ListByState(state model.State) ([]model.Job, error) {
	var out []model.Job
	err := s.view(func(jobs []model.Job) error {
		for i := range jobs {
			if jobs[i].State == state {
				out = append(out, jobs[i])
			}
		}
		return nil
	})
	sortByCreatedAt(out)
	return out, err
}

// All returns every job, oldest first.
func (s *Store) All() ([]model.Job, error) {
	var out []model.Job
	err := s.view(func(jobs []model.Job) error {
		out = append(out, jobs...)
		return nil
	})
	sortByCreatedAt(out)
	return out, err
}

// Stats returns a state -> count summary.
func (s *Store) Stats() (map[model.State]int, error) {
	stats := make(map[model.State]int)
	err := s.view(func(jobs []model.Job) error {
		for i := range jobs {
			stats[jobs[i].State]++
		}
		return nil
	})
	return stats, err
}

// ClaimNextEligible selects the oldest eligible job (pending, or failed
// with its retry time elapsed) and marks it processing for workerID —
// selection and busy-marking happen inside the same critical section,
// so no two claimers can ever receive the same job. Returns nil when
// nothing is eligible.
func (s *Store) ClaimNextEligible(workerID string) (*model.Job, error) {
	var claimed *model.Job
	now := time.Now()
	err := s.mutate(func(jobs []model.Job) ([]model.Job, bool, error) {
		best := -1
		for i := range jobs {
			if !jobs[i].Eligible(now) {
				continue
			}
			if best == -1 || jobs[i].CreatedAt.Before(jobs[best].CreatedAt) {
				best = i
			}
		}
		if best == -1 {
			return jobs, false, nil
		}
		jobs[best].State = model.StateProcessing
		jobs[best].WorkerID = workerID
		jobs[best].NextRetryAt = nil
		stampUpdated(&jobs[best])
		j := jobs[best]
		claimed = &j
		return jobs, true, nil
	})
	return claimed, err
}

// ResetProcessing moves every processing job back to pending with its
// worker id cleared, returning how many were reset. Used on startup to
// reclaim jobs orphaned by a crashed worker process.
func (s *Store) ResetProcessing() (int, error) {
	count := 0
	err := s.mutate(func(jobs []model.Job) ([]model.Job, bool, error) {
		for i := range jobs {
			if jobs[i].State == model.StateProcessing {
				jobs[i].State = model.StatePending
				jobs[i].WorkerID = ""
				stampUpdated(&jobs[i])
				count++
			}
		}
		return jobs, count > 0, nil
	})
	return count, err
}

// DeleteCompletedBefore removes completed jobs last updated before
// cutoff, returning how many were removed.
func (s *Store) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	count := 0
	err := s.mutate(func(jobs []model.Job) ([]model.Job, bool, error) {
		kept := jobs[:0]
		for i := range jobs {
			if jobs[i].State == model.StateCompleted && jobs[i].UpdatedAt.Before(cutoff) {
				count++
				continue
			}
			kept = append(kept, jobs[i])
		}
		return kept, count > 0, nil
	})
	return count, err
}

// stampUpdated advances UpdatedAt, keeping it strictly monotonic even
// if the wall clock did not move between mutations.
func stampUpdated(j *model.Job) {
	now := time.Now()
	if !now.After(j.UpdatedAt) {
		now = j.UpdatedAt.Add(time.Nanosecond)
	}
	j.UpdatedAt = now
}

func sortByCreatedAt(jobs []model.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
}
