package storage

import (
	"context"
	"errors"
	"time"
)

// lockRetryDelay is how often a blocked acquirer re-attempts the flock.
const lockRetryDelay = 25 * time.Millisecond

// acquireLock enters the store's critical section, waiting at most
// s.lockTimeout in total. Exclusion is two-layered: a one-slot
// semaphore serializes goroutines inside this process (flock is
// per-process and would treat a second goroutine as already holding
// it), and the kernel advisory flock excludes other processes. The
// flock syscall is a single atomic acquire — there is no window
// between checking and holding, so at most one holder can ever exist.
func (s *Store) acquireLock() error {
	deadline := time.Now().Add(s.lockTimeout)

	select {
	case s.sem <- struct{}{}:
	case <-time.After(s.lockTimeout):
		return ErrLockTimeout
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		<-s.sem
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return err
	}
	return nil
}

// releaseLock leaves the critical section. Release is unconditional
// once a critical section finishes, even if the mutation inside it
// failed.
func (s *Store) releaseLock() {
	_ = s.lock.Unlock()
	<-s.sem
}
